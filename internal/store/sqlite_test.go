package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/me/vmbroker/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func ptr[T any](v T) *T { return &v }

func sampleRun(id string, created time.Time) *model.Run {
	return &model.Run{
		ID:             id,
		WorkflowName:   "diamond",
		State:          model.RunStateTerminated,
		TaskCount:      4,
		Depth:          3,
		PoolSize:       2,
		CompletedTasks: 4,
		Report: &model.CostReport{
			Makespan:               1500,
			RatePerSecond:          0.001,
			MinimumBillableSeconds: 600,
			Slots: []model.SlotCharge{
				{SlotID: 0, StartTime: 0, EndTime: 1500, ActiveSeconds: 1500, BillableSeconds: 1500},
				{SlotID: 1, StartTime: 0, EndTime: 1500, ActiveSeconds: 1500, BillableSeconds: 1500},
			},
			BillableSeconds: 3000,
			Total:           3,
		},
		Dispatches: []model.DispatchUnit{
			{ID: 1, NodeID: "A", SlotID: ptr(0), State: model.DispatchStateCompleted, CreatedAt: 0, DispatchedAt: ptr(0.0), CompletedAt: ptr(500.0)},
			{ID: 2, NodeID: "B", SlotID: ptr(1), State: model.DispatchStateCompleted, CreatedAt: 500, DispatchedAt: ptr(500.0), CompletedAt: ptr(1000.0)},
			{ID: 3, NodeID: "C", State: model.DispatchStatePending, CreatedAt: 500},
		},
		Failures: []model.AckFailure{
			{Kind: model.FailureProvisioning, SlotID: 2, Time: 0},
		},
		CreatedAt: created,
	}
}

func TestCreateAndGetRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	want := sampleRun("run_test-1", time.Now().UTC().Truncate(time.Millisecond))

	if err := st.CreateRun(ctx, want); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := st.GetRun(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	got.CreatedAt = want.CreatedAt
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRun(context.Background(), "run_missing")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestCreateRun_WithoutReport(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := &model.Run{
		ID:           "run_noreport",
		WorkflowName: "w",
		State:        model.RunStateRunning,
		TaskCount:    2,
		Depth:        1,
		PoolSize:     2,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Report != nil {
		t.Errorf("Report = %+v, want nil", got.Report)
	}
	if got.Dispatches != nil || got.Failures != nil {
		t.Errorf("expected empty history, got dispatches=%v failures=%v", got.Dispatches, got.Failures)
	}
}

func TestCreateRun_DuplicateID(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	run := sampleRun("run_dup", time.Now().UTC())
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := st.CreateRun(ctx, run); err == nil {
		t.Fatal("expected error for duplicate id")
	}

	// The failed insert must not leave partial rows behind.
	got, err := st.GetRun(ctx, "run_dup")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(got.Dispatches) != 3 || len(got.Report.Slots) != 2 {
		t.Errorf("dispatches=%d slots=%d, want 3/2", len(got.Dispatches), len(got.Report.Slots))
	}
}

func TestListRuns(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := sampleRun(fmt.Sprintf("run_%d", i), base.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			run.State = model.RunStateRunning
		}
		if err := st.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun %d: %v", i, err)
		}
	}

	runs, total, err := st.ListRuns(ctx, model.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(runs) != 2 || runs[0].ID != "run_4" || runs[1].ID != "run_3" {
		t.Fatalf("page 1 = %v, want run_4, run_3", ids(runs))
	}
	if runs[1].Report == nil || runs[1].Report.Total != 3 {
		t.Errorf("summary report = %+v, want total 3", runs[1].Report)
	}
	if runs[1].Report.Slots != nil || runs[1].Dispatches != nil {
		t.Error("summaries should not carry slots or dispatches")
	}

	runs, _, err = st.ListRuns(ctx, model.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("ListRuns offset: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run_0" {
		t.Errorf("last page = %v, want run_0", ids(runs))
	}

	runs, total, err = st.ListRuns(ctx, model.ListOptions{State: string(model.RunStateRunning)})
	if err != nil {
		t.Fatalf("ListRuns state: %v", err)
	}
	if total != 1 || len(runs) != 1 || runs[0].ID != "run_4" {
		t.Errorf("RUNNING runs = %v (total %d), want run_4", ids(runs), total)
	}
}

func TestDeleteRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.CreateRun(ctx, sampleRun("run_del", time.Now().UTC())); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := st.DeleteRun(ctx, "run_del"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if got, _ := st.GetRun(ctx, "run_del"); got != nil {
		t.Error("run still present after delete")
	}

	var n int
	if err := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_dispatches`).Scan(&n); err != nil {
		t.Fatalf("count dispatches: %v", err)
	}
	if n != 0 {
		t.Errorf("run_dispatches rows = %d, want 0 after cascade", n)
	}

	if err := st.DeleteRun(ctx, "run_del"); err == nil {
		t.Error("expected error deleting a missing run")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func ids(runs []*model.Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
