package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/me/vmbroker/internal/config"
	"github.com/me/vmbroker/internal/logging"
	"github.com/me/vmbroker/internal/server"
	"github.com/me/vmbroker/internal/store"
)

func main() {
	// The config file is loaded before flag parsing so that flags override it.
	cfg, err := config.Load(configPath(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "Listen address")
	flag.StringVar(&cfg.Server.LogLevel, "log-level", cfg.Server.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.Server.LogFormat, "log-format", cfg.Server.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.Server.DBPath, "db", cfg.Server.DBPath, "Database path (default ~/.vmbroker/vmbroker.db)")
	flag.Float64Var(&cfg.Broker.RatePerSecond, "rate", cfg.Broker.RatePerSecond, "Price of one slot-second")
	flag.Float64Var(&cfg.Broker.MinimumBillableSeconds, "min-billable", cfg.Broker.MinimumBillableSeconds, "Minimum billable seconds per slot")
	flag.String("config", "", "Path to a YAML config file (broker, simulation, server sections)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	if *debug {
		cfg.Server.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Server.LogLevel), cfg.Server.LogFormat)

	// Resolve database path.
	dbPath := cfg.Server.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".vmbroker")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "vmbroker.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	srv := server.New(cfg, st, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr,
			"rate_per_second", cfg.Broker.RatePerSecond, "minimum_billable_seconds", cfg.Broker.MinimumBillableSeconds)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// configPath finds the value of -config or --config in args.
func configPath(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
