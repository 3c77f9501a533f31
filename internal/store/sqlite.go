package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/vmbroker/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// A second connection to ":memory:" would open a separate, empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	failuresJSON, err := json.Marshal(nonNilFailures(run.Failures))
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	var makespan, rate, minimum, total *float64
	var billable *int64
	if r := run.Report; r != nil {
		makespan, rate, minimum, total = &r.Makespan, &r.RatePerSecond, &r.MinimumBillableSeconds, &r.Total
		billable = &r.BillableSeconds
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_name, state, task_count, depth, pool_size, completed_tasks,
		 makespan, rate_per_second, minimum_billable_seconds, billable_seconds, total_cost, failures, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowName, string(run.State), run.TaskCount, run.Depth, run.PoolSize, run.CompletedTasks,
		makespan, rate, minimum, billable, total, string(failuresJSON),
		run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if run.Report != nil {
		for _, c := range run.Report.Slots {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO run_slots (run_id, slot_id, start_time, end_time, active_seconds, billable_seconds)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				run.ID, c.SlotID, c.StartTime, c.EndTime, c.ActiveSeconds, c.BillableSeconds,
			)
			if err != nil {
				return fmt.Errorf("insert slot %d: %w", c.SlotID, err)
			}
		}
	}

	for _, u := range run.Dispatches {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_dispatches (run_id, unit_id, node_id, slot_id, state, created_at, dispatched_at, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, u.ID, u.NodeID, u.SlotID, string(u.State), u.CreatedAt, u.DispatchedAt, u.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("insert dispatch unit %d: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	run, err := s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil || run == nil {
		return nil, err
	}

	if run.Report != nil {
		slots, err := s.runSlots(ctx, id)
		if err != nil {
			return nil, err
		}
		run.Report.Slots = slots
	}

	dispatches, err := s.runDispatches(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Dispatches = dispatches
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	whereSQL := ""
	var countArgs []any
	if opts.State != "" {
		whereSQL = " WHERE state = ?"
		countArgs = append(countArgs, opts.State)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(countArgs, opts.Limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs`+whereSQL+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "runs", "id", id)

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

const runColumns = `id, workflow_name, state, task_count, depth, pool_size, completed_tasks,
	makespan, rate_per_second, minimum_billable_seconds, billable_seconds, total_cost, failures, created_at`

type scanner interface {
	Scan(dest ...any) error
}

// scanRun reads one runs row. It returns nil, nil when the row does not exist.
func (s *SQLiteStore) scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var state, failuresJSON, createdAt string
	var makespan, rate, minimum, total *float64
	var billable *int64

	err := row.Scan(&run.ID, &run.WorkflowName, &state, &run.TaskCount, &run.Depth, &run.PoolSize,
		&run.CompletedTasks, &makespan, &rate, &minimum, &billable, &total, &failuresJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.State = model.RunState(state)
	if err := json.Unmarshal([]byte(failuresJSON), &run.Failures); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}
	if len(run.Failures) == 0 {
		run.Failures = nil
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	if makespan != nil {
		run.Report = &model.CostReport{Makespan: *makespan}
		if rate != nil {
			run.Report.RatePerSecond = *rate
		}
		if minimum != nil {
			run.Report.MinimumBillableSeconds = *minimum
		}
		if billable != nil {
			run.Report.BillableSeconds = *billable
		}
		if total != nil {
			run.Report.Total = *total
		}
	}
	return &run, nil
}

func (s *SQLiteStore) runSlots(ctx context.Context, runID string) ([]model.SlotCharge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot_id, start_time, end_time, active_seconds, billable_seconds
		 FROM run_slots WHERE run_id = ? ORDER BY slot_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []model.SlotCharge{}
	for rows.Next() {
		var c model.SlotCharge
		if err := rows.Scan(&c.SlotID, &c.StartTime, &c.EndTime, &c.ActiveSeconds, &c.BillableSeconds); err != nil {
			return nil, err
		}
		slots = append(slots, c)
	}
	return slots, rows.Err()
}

func (s *SQLiteStore) runDispatches(ctx context.Context, runID string) ([]model.DispatchUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, node_id, slot_id, state, created_at, dispatched_at, completed_at
		 FROM run_dispatches WHERE run_id = ? ORDER BY unit_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []model.DispatchUnit
	for rows.Next() {
		var u model.DispatchUnit
		var state string
		if err := rows.Scan(&u.ID, &u.NodeID, &u.SlotID, &state, &u.CreatedAt, &u.DispatchedAt, &u.CompletedAt); err != nil {
			return nil, err
		}
		u.State = model.DispatchState(state)
		units = append(units, u)
	}
	return units, rows.Err()
}

func nonNilFailures(f []model.AckFailure) []model.AckFailure {
	if f == nil {
		return []model.AckFailure{}
	}
	return f
}
