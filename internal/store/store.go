package store

import (
	"context"

	"github.com/me/vmbroker/pkg/model"
)

// Store defines the persistence layer for finished broker runs.
type Store interface {
	// CreateRun stores a run with its billing lines and dispatch history.
	CreateRun(ctx context.Context, run *model.Run) error
	// GetRun returns the run with id, or nil if there is none.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns run summaries, newest first, and the total count.
	// Summaries omit billing lines and dispatch history.
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	// DeleteRun removes a run and everything recorded for it.
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
