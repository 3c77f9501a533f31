package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/me/vmbroker/pkg/model"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse runs stored on the server",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var (
		limit  int
		offset int
		state  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			if state != "" {
				q.Set("state", state)
			}
			resp, err := client.Get(cmd.Context(), "/api/v1/runs/?"+q.Encode())
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			var runs []model.Run
			if err := json.Unmarshal(resp.Data, &runs); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-20s  %-10s  %-7s  %-10s  %s\n", "ID", "WORKFLOW", "STATE", "TASKS", "COST", "CREATED")
			fmt.Fprintf(out, "%-40s  %-20s  %-10s  %-7s  %-10s  %s\n", "--", "--------", "-----", "-----", "----", "-------")
			for _, r := range runs {
				cost := "-"
				if r.Report != nil {
					cost = formatCost(r.Report.Total)
				}
				tasks := fmt.Sprintf("%d/%d", r.CompletedTasks, r.TaskCount)
				fmt.Fprintf(out, "%-40s  %-20s  %-10s  %-7s  %-10s  %s\n",
					r.ID, r.WorkflowName, r.State, tasks, cost, humanize.Time(r.CreatedAt))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), resp.Pagination.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of runs to skip")
	cmd.Flags().StringVar(&state, "state", "", "Only list runs in this state")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var (
		asJSON     bool
		dispatches bool
	)
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run and its cost report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/runs/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				var pretty any
				if err := json.Unmarshal(resp.Data, &pretty); err != nil {
					return fmt.Errorf("parse response: %w", err)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(pretty)
			}

			var run model.Run
			if err := json.Unmarshal(resp.Data, &run); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			printRun(out, &run, dispatches)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run record as JSON")
	cmd.Flags().BoolVar(&dispatches, "dispatches", false, "Include the dispatch history")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete(cmd.Context(), "/api/v1/runs/"+url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s deleted.\n", args[0])
			return nil
		},
	}
}
