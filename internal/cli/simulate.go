package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/me/vmbroker/internal/logging"
	"github.com/me/vmbroker/internal/sim"
	"github.com/me/vmbroker/internal/store"
	"github.com/me/vmbroker/internal/workflow"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var (
		asJSON         bool
		dbPath         string
		rate           float64
		minBillable    float64
		durationExpr   string
		provisionDelay float64
	)

	cmd := &cobra.Command{
		Use:   "simulate <workflow-file>",
		Short: "Run a workflow through the broker on the simulated substrate",
		Long: "Loads a workflow (.yaml, .json, .dax/.xml, or .hcl), runs it through the broker " +
			"against a discrete-event simulator, and prints the cost report.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := workflow.Load(args[0])
			if err != nil {
				return err
			}

			bcfg := cfg.BrokerOptions()
			scfg := cfg.SimOptions()
			flags := cmd.Flags()
			if flags.Changed("rate") {
				bcfg.Billing.RatePerSecond = rate
			}
			if flags.Changed("min-billable") {
				bcfg.Billing.MinimumBillableSeconds = minBillable
			}
			if flags.Changed("duration-expr") {
				scfg.DurationExpr = durationExpr
			}
			if flags.Changed("provision-delay") {
				scfg.ProvisionDelay = provisionDelay
			}

			id := "run_" + uuid.New().String()
			run, err := sim.Simulate(cmd.Context(), wf, bcfg, scfg, logging.ForRun(logger, id, wf.Name))
			if err != nil {
				return fmt.Errorf("simulate %s: %w", wf.Name, err)
			}
			run.ID = id
			run.CreatedAt = time.Now().UTC()

			if dbPath != "" {
				st, err := store.NewSQLiteStore(dbPath, logger)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate %s: %w", dbPath, err)
				}
				if err := st.CreateRun(cmd.Context(), run); err != nil {
					return fmt.Errorf("store run: %w", err)
				}
				logger.Info("run stored", "run_id", run.ID, "db", dbPath)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			printRun(out, run, false)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run record as JSON")
	cmd.Flags().StringVar(&dbPath, "db", "", "Store the run in this SQLite database")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Price of one slot-second (overrides config)")
	cmd.Flags().Float64Var(&minBillable, "min-billable", 0, "Minimum billable seconds per slot (overrides config)")
	cmd.Flags().StringVar(&durationExpr, "duration-expr", "", "JavaScript expression for task run time in seconds")
	cmd.Flags().Float64Var(&provisionDelay, "provision-delay", 0, "Seconds between a slot request and its creation")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <workflow-file>",
		Short: "Show a workflow's size, depth, and slot pool size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := workflow.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workflow:  %s\n", wf.Name)
			fmt.Fprintf(out, "Tasks:     %d\n", len(wf.Nodes))
			fmt.Fprintf(out, "Depth:     %d\n", wf.Depth)
			fmt.Fprintf(out, "Pool size: %d\n", wf.PoolSize())

			roots := 0
			for _, n := range wf.Nodes {
				if len(n.Parents) == 0 {
					roots++
				}
			}
			fmt.Fprintf(out, "Roots:     %d\n", roots)
			return nil
		},
	}
}
