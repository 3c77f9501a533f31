package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPagination describes one page of total items selected by opts.
// opts should already be clamped.
func NewPagination(total int, opts ListOptions) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	}
}

// ListOptions pages through stored runs, optionally filtered by run state.
type ListOptions struct {
	Limit  int
	Offset int
	State  string
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// DefaultListOptions returns the first page of default size.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: defaultListLimit}
}

// Clamp enforces limits (max 100, min 1) and a non-negative offset.
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
