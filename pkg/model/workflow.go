package model

// Workflow is a loaded DAG: task nodes in source order plus the workflow depth.
type Workflow struct {
	Name  string     `json:"name"`
	Nodes []TaskNode `json:"nodes"`

	// Depth is the number of nodes on the longest dependency chain.
	Depth int `json:"depth"`
}

// PoolSize returns ceil(len(Nodes) / Depth), the fixed slot pool size for a run.
func (w *Workflow) PoolSize() int {
	n := len(w.Nodes)
	if n == 0 || w.Depth <= 0 {
		return 0
	}
	return (n + w.Depth - 1) / w.Depth
}
