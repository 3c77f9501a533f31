package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all vmbroker tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id                       TEXT PRIMARY KEY,
		workflow_name            TEXT NOT NULL,
		state                    TEXT NOT NULL,
		task_count               INTEGER NOT NULL,
		depth                    INTEGER NOT NULL,
		pool_size                INTEGER NOT NULL,
		completed_tasks          INTEGER NOT NULL DEFAULT 0,
		makespan                 REAL,
		rate_per_second          REAL,
		minimum_billable_seconds REAL,
		billable_seconds         INTEGER,
		total_cost               REAL,
		failures                 TEXT NOT NULL DEFAULT '[]',
		created_at               TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS run_slots (
		run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		slot_id          INTEGER NOT NULL,
		start_time       REAL NOT NULL,
		end_time         REAL NOT NULL,
		active_seconds   REAL NOT NULL,
		billable_seconds INTEGER NOT NULL,
		PRIMARY KEY (run_id, slot_id)
	)`,

	`CREATE TABLE IF NOT EXISTS run_dispatches (
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		unit_id       INTEGER NOT NULL,
		node_id       TEXT NOT NULL,
		slot_id       INTEGER,
		state         TEXT NOT NULL,
		created_at    REAL NOT NULL,
		dispatched_at REAL,
		completed_at  REAL,
		PRIMARY KEY (run_id, unit_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_workflow_name ON runs(workflow_name)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
