// Package cost computes billable slot time and the aggregate cost of a run.
package cost

import "github.com/me/vmbroker/pkg/model"

const (
	// DefaultMinimumBillableSeconds is the minimum rental period charged per slot.
	DefaultMinimumBillableSeconds = 600

	// DefaultRatePerSecond is the flat price of one slot-second.
	DefaultRatePerSecond = 0.001
)

// Policy holds the billing parameters.
type Policy struct {
	MinimumBillableSeconds float64
	RatePerSecond          float64
}

// DefaultPolicy returns the flat-rate policy with a ten-minute minimum.
func DefaultPolicy() Policy {
	return Policy{
		MinimumBillableSeconds: DefaultMinimumBillableSeconds,
		RatePerSecond:          DefaultRatePerSecond,
	}
}

// Compute bills every slot that became active. A slot is billed from its
// start time to its terminate time, or to now if it was never terminated,
// and never less than the policy minimum. Each slot's billable time is
// truncated to whole seconds before summing; the rate is then applied to
// the integer total at full precision.
func Compute(slots []model.Slot, now float64, p Policy) *model.CostReport {
	report := &model.CostReport{
		Makespan:               now,
		RatePerSecond:          p.RatePerSecond,
		MinimumBillableSeconds: p.MinimumBillableSeconds,
		Slots:                  []model.SlotCharge{},
	}

	for _, s := range slots {
		if s.StartTime == nil {
			continue
		}
		end := now
		if s.TerminateTime != nil {
			end = *s.TerminateTime
		}
		active := end - *s.StartTime
		billed := max(active, p.MinimumBillableSeconds)

		charge := model.SlotCharge{
			SlotID:          s.ID,
			StartTime:       *s.StartTime,
			EndTime:         end,
			ActiveSeconds:   active,
			BillableSeconds: int64(billed),
		}
		report.Slots = append(report.Slots, charge)
		report.BillableSeconds += charge.BillableSeconds
	}

	report.Total = float64(report.BillableSeconds) * p.RatePerSecond
	return report
}
