package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/me/vmbroker/internal/broker"
	"github.com/me/vmbroker/internal/cost"
	"github.com/me/vmbroker/internal/sim"
	"github.com/me/vmbroker/pkg/model"
)

// Config is the complete vmbroker configuration.
type Config struct {
	Broker     BrokerConfig     `yaml:"broker"`
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
}

// BrokerConfig holds the slot size and billing policy.
type BrokerConfig struct {
	Capacity               model.Capacity `yaml:"capacity"`
	RatePerSecond          float64        `yaml:"rate_per_second"`
	MinimumBillableSeconds float64        `yaml:"minimum_billable_seconds"`
}

// SimulationConfig holds the simulated substrate settings.
type SimulationConfig struct {
	ProvisionDelay float64 `yaml:"provision_delay"`
	TerminateDelay float64 `yaml:"terminate_delay"`
	TaskLength     float64 `yaml:"task_length"` // million instructions
	DurationExpr   string  `yaml:"duration_expr"`
}

// ServerConfig holds configuration for the vmbroker server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json
	DBPath    string `yaml:"db_path"`    // SQLite database path (default ~/.vmbroker/vmbroker.db, ":memory:" for testing)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Broker: BrokerConfig{
			Capacity:               model.DefaultCapacity(),
			RatePerSecond:          cost.DefaultRatePerSecond,
			MinimumBillableSeconds: cost.DefaultMinimumBillableSeconds,
		},
		Simulation: SimulationConfig{
			TaskLength: sim.DefaultTaskLength,
		},
		Server: DefaultServerConfig(),
	}
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.overlay(data); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) overlay(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse YAML: %w", err)
	}
	return c.Validate()
}

// Validate checks that the numeric settings are usable.
func (c *Config) Validate() error {
	switch {
	case c.Broker.RatePerSecond < 0:
		return fmt.Errorf("broker.rate_per_second must be non-negative")
	case c.Broker.MinimumBillableSeconds < 0:
		return fmt.Errorf("broker.minimum_billable_seconds must be non-negative")
	case c.Broker.Capacity.MIPS <= 0:
		return fmt.Errorf("broker.capacity.mips must be positive")
	case c.Simulation.ProvisionDelay < 0 || c.Simulation.TerminateDelay < 0:
		return fmt.Errorf("simulation delays must be non-negative")
	case c.Simulation.TaskLength <= 0:
		return fmt.Errorf("simulation.task_length must be positive")
	}
	return nil
}

// BrokerOptions converts the broker section to a broker.Config.
func (c *Config) BrokerOptions() broker.Config {
	return broker.Config{
		Capacity: c.Broker.Capacity,
		Billing: cost.Policy{
			MinimumBillableSeconds: c.Broker.MinimumBillableSeconds,
			RatePerSecond:          c.Broker.RatePerSecond,
		},
	}
}

// SimOptions converts the simulation section to a sim.Config.
func (c *Config) SimOptions() sim.Config {
	return sim.Config{
		ProvisionDelay: c.Simulation.ProvisionDelay,
		TerminateDelay: c.Simulation.TerminateDelay,
		TaskLength:     c.Simulation.TaskLength,
		DurationExpr:   c.Simulation.DurationExpr,
	}
}
