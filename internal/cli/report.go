package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/me/vmbroker/pkg/model"
)

func formatCost(total float64) string {
	return humanize.FormatFloat("#,###.####", total)
}

func formatTime(ts *float64) string {
	if ts == nil {
		return "-"
	}
	return humanize.FormatFloat("#,###.##", *ts)
}

// printRun renders a run and its cost report as plain text.
func printRun(w io.Writer, run *model.Run, withDispatches bool) {
	if run.ID != "" {
		fmt.Fprintf(w, "Run:       %s\n", run.ID)
	}
	fmt.Fprintf(w, "Workflow:  %s (%d tasks, depth %d)\n", run.WorkflowName, run.TaskCount, run.Depth)
	fmt.Fprintf(w, "State:     %s (%d/%d tasks completed)\n", run.State, run.CompletedTasks, run.TaskCount)
	fmt.Fprintf(w, "Pool:      %d slots\n", run.PoolSize)
	if !run.Complete() {
		fmt.Fprintln(w, "Warning:   run ended before every task completed")
	}

	if r := run.Report; r != nil {
		fmt.Fprintf(w, "Makespan:  %s s\n", humanize.FormatFloat("#,###.##", r.Makespan))
		fmt.Fprintf(w, "Billable:  %s slot-seconds\n", humanize.Comma(r.BillableSeconds))
		fmt.Fprintf(w, "Cost:      %s (rate %g/s, minimum %g s per slot)\n",
			formatCost(r.Total), r.RatePerSecond, r.MinimumBillableSeconds)

		if len(r.Slots) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%-6s  %-12s  %-12s  %-12s  %s\n", "SLOT", "START", "END", "ACTIVE", "BILLED")
			for _, c := range r.Slots {
				fmt.Fprintf(w, "%-6d  %-12s  %-12s  %-12s  %s\n", c.SlotID,
					formatTime(&c.StartTime), formatTime(&c.EndTime), formatTime(&c.ActiveSeconds),
					humanize.Comma(c.BillableSeconds))
			}
		}
	}

	if len(run.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Slot failures:")
		for _, f := range run.Failures {
			fmt.Fprintf(w, "  %s failure on slot %d at %s\n", f.Kind, f.SlotID, formatTime(&f.Time))
		}
	}

	if withDispatches && len(run.Dispatches) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%-6s  %-20s  %-6s  %-10s  %-12s  %s\n", "UNIT", "TASK", "SLOT", "STATE", "DISPATCHED", "COMPLETED")
		for _, u := range run.Dispatches {
			slot := "-"
			if u.SlotID != nil {
				slot = fmt.Sprint(*u.SlotID)
			}
			fmt.Fprintf(w, "%-6d  %-20s  %-6s  %-10s  %-12s  %s\n",
				u.ID, u.NodeID, slot, u.State, formatTime(u.DispatchedAt), formatTime(u.CompletedAt))
		}
	}
}
