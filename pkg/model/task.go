package model

// TaskNode is a unit of work in a workflow DAG.
type TaskNode struct {
	ID      string   `json:"id" yaml:"id"`
	Parents []string `json:"parents,omitempty" yaml:"parents,omitempty"`

	// Runtime is the nominal runtime in seconds reported by the workflow
	// source. Zero when the source does not carry one.
	Runtime float64 `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// DispatchUnit is one attempt to run a TaskNode on a Slot.
type DispatchUnit struct {
	ID           int           `json:"id"`
	NodeID       string        `json:"node_id"`
	SlotID       *int          `json:"slot_id,omitempty"`
	State        DispatchState `json:"state"`
	CreatedAt    float64       `json:"created_at"`
	DispatchedAt *float64      `json:"dispatched_at,omitempty"`
	CompletedAt  *float64      `json:"completed_at,omitempty"`
}
