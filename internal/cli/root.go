package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/me/vmbroker/internal/config"
	"github.com/me/vmbroker/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking VMBROKER_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("VMBROKER_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the vmbroker CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vmbroker",
		Short: "vmbroker: DAG-aware VM slot broker",
		Long: "vmbroker sizes a pool of VM slots from a workflow's depth, dispatches ready tasks " +
			"onto idle slots, and reports the resource-time cost of the run.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)

			loaded, err := config.Load(flagConfig)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "vmbroker server URL (or VMBROKER_SERVER env)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML configuration file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSimulateCmd(),
		newInspectCmd(),
		newRunsCmd(),
	)

	return root
}
