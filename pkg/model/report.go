package model

// SlotCharge is the billing line for one slot.
type SlotCharge struct {
	SlotID          int     `json:"slot_id"`
	StartTime       float64 `json:"start_time"`
	EndTime         float64 `json:"end_time"`
	ActiveSeconds   float64 `json:"active_seconds"`
	BillableSeconds int64   `json:"billable_seconds"`
}

// CostReport is the aggregate resource-time cost of a run.
type CostReport struct {
	Makespan               float64      `json:"makespan"`
	RatePerSecond          float64      `json:"rate_per_second"`
	MinimumBillableSeconds float64      `json:"minimum_billable_seconds"`
	Slots                  []SlotCharge `json:"slots"`
	BillableSeconds        int64        `json:"billable_seconds"`
	Total                  float64      `json:"total"`
}
