package model

import "time"

// Run is the record of one workflow executed by the broker.
type Run struct {
	ID             string         `json:"id"`
	WorkflowName   string         `json:"workflow_name"`
	State          RunState       `json:"state"`
	TaskCount      int            `json:"task_count"`
	Depth          int            `json:"depth"`
	PoolSize       int            `json:"pool_size"`
	CompletedTasks int            `json:"completed_tasks"`
	Report         *CostReport    `json:"report,omitempty"`
	Dispatches     []DispatchUnit `json:"dispatches,omitempty"`
	Failures       []AckFailure   `json:"failures,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Complete returns true if every task of the workflow finished.
func (r *Run) Complete() bool {
	return r.CompletedTasks == r.TaskCount
}
