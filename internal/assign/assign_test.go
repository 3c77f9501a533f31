package assign

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/me/vmbroker/pkg/model"
)

type dispatchCall struct {
	unitID int
	nodeID string
	slotID int
}

type fakeDispatcher struct {
	calls []dispatchCall
}

func (f *fakeDispatcher) DispatchTask(unitID int, task model.TaskNode, slotID int) error {
	f.calls = append(f.calls, dispatchCall{unitID, task.ID, slotID})
	return nil
}

// fakeSlots is a FIFO idle list.
type fakeSlots struct {
	idle []int
}

func (f *fakeSlots) IdleSlots() []int {
	out := make([]int, len(f.idle))
	copy(out, f.idle)
	return out
}

func (f *fakeSlots) TakeIdleSlot() (int, error) {
	if len(f.idle) == 0 {
		return 0, model.ErrPoolExhausted
	}
	id := f.idle[0]
	f.idle = f.idle[1:]
	return id, nil
}

func testEngine(t *testing.T) (*Engine, *fakeDispatcher) {
	t.Helper()
	d := &fakeDispatcher{}
	return NewEngine(d, slog.New(slog.NewTextHandler(io.Discard, nil))), d
}

func nodes(ids ...string) []model.TaskNode {
	out := make([]model.TaskNode, len(ids))
	for i, id := range ids {
		out[i] = model.TaskNode{ID: id}
	}
	return out
}

func TestPairFIFO(t *testing.T) {
	tests := []struct {
		name  string
		ready []string
		idle  []int
		want  string
	}{
		{"more tasks than slots", []string{"A", "B", "C"}, []int{1, 2}, "[{A 1} {B 2}]"},
		{"more slots than tasks", []string{"A"}, []int{4, 2, 9}, "[{A 4}]"},
		{"no slots", []string{"A"}, nil, "[]"},
		{"no tasks", nil, []int{1}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprint(PairFIFO(tt.ready, tt.idle)); got != tt.want {
				t.Errorf("PairFIFO = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestScheduleStep_FIFOFidelity(t *testing.T) {
	e, d := testEngine(t)
	if _, err := e.Enqueue(nodes("A", "B", "C"), 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	slots := &fakeSlots{idle: []int{1, 2}}

	pairs, err := e.ScheduleStep(slots, 10)
	if err != nil {
		t.Fatalf("ScheduleStep: %v", err)
	}
	if got := fmt.Sprint(pairs); got != "[{A 1} {B 2}]" {
		t.Errorf("pairs = %s, want [{A 1} {B 2}]", got)
	}
	if got := fmt.Sprint(e.Ready()); got != "[C]" {
		t.Errorf("Ready = %s, want [C]", got)
	}
	if len(slots.idle) != 0 {
		t.Errorf("idle slots left = %v", slots.idle)
	}
	if got := fmt.Sprint(d.calls); got != "[{1 A 1} {2 B 2}]" {
		t.Errorf("dispatch calls = %s", got)
	}

	units := e.Units()
	if units[0].State != model.DispatchStateDispatched || *units[0].SlotID != 1 || *units[0].DispatchedAt != 10 {
		t.Errorf("unit A = %+v", units[0])
	}
	if units[2].State != model.DispatchStatePending || units[2].SlotID != nil {
		t.Errorf("unit C = %+v", units[2])
	}
	if e.Running() != 2 {
		t.Errorf("Running = %d, want 2", e.Running())
	}
}

func TestEnqueue_RejectsDuplicateNode(t *testing.T) {
	e, _ := testEngine(t)
	e.Enqueue(nodes("A"), 0)
	if _, err := e.Enqueue(nodes("A"), 1); err == nil {
		t.Fatal("expected error enqueuing A twice")
	}
	if !e.Tracked()["A"] {
		t.Error("A should be tracked")
	}
}

func TestEnqueue_MonotonicIDs(t *testing.T) {
	e, _ := testEngine(t)
	first, _ := e.Enqueue(nodes("A", "B"), 0)
	second, _ := e.Enqueue(nodes("C"), 0)
	if first[0].ID != 1 || first[1].ID != 2 || second[0].ID != 3 {
		t.Errorf("ids = %d %d %d, want 1 2 3", first[0].ID, first[1].ID, second[0].ID)
	}
}

func TestComplete(t *testing.T) {
	e, _ := testEngine(t)
	e.Enqueue(nodes("A"), 0)
	e.ScheduleStep(&fakeSlots{idle: []int{7}}, 0)

	u, err := e.Complete(1, 7, 500)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if u.State != model.DispatchStateCompleted || u.NodeID != "A" || *u.CompletedAt != 500 {
		t.Errorf("completed unit = %+v", u)
	}
	if e.Running() != 0 {
		t.Errorf("Running = %d, want 0", e.Running())
	}

	var trErr *model.InvalidTransitionError
	if _, err := e.Complete(1, 7, 600); !errors.As(err, &trErr) {
		t.Errorf("double completion err = %v, want InvalidTransitionError", err)
	}
}

func TestComplete_Errors(t *testing.T) {
	e, _ := testEngine(t)
	e.Enqueue(nodes("A", "B"), 0)
	e.ScheduleStep(&fakeSlots{idle: []int{3}}, 0)

	var unitErr *model.UnknownDispatchUnitError
	if _, err := e.Complete(42, 3, 1); !errors.As(err, &unitErr) {
		t.Errorf("unknown unit err = %v", err)
	}

	var trErr *model.InvalidTransitionError
	if _, err := e.Complete(2, 3, 1); !errors.As(err, &trErr) {
		t.Errorf("pending unit completion err = %v, want InvalidTransitionError", err)
	}

	if _, err := e.Complete(1, 4, 1); err == nil {
		t.Error("completion on the wrong slot should fail")
	}
}

func TestScheduleStep_RejectsDoubleBooking(t *testing.T) {
	e, _ := testEngine(t)
	e.Enqueue(nodes("A", "B"), 0)
	e.ScheduleStep(&fakeSlots{idle: []int{5}}, 0)

	// A buggy slot source hands out slot 5 again while A still runs on it.
	if _, err := e.ScheduleStep(&fakeSlots{idle: []int{5}}, 1); err == nil {
		t.Fatal("expected double-booking error")
	}
}

func TestScheduleStep_NoWork(t *testing.T) {
	e, d := testEngine(t)
	pairs, err := e.ScheduleStep(&fakeSlots{idle: []int{1}}, 0)
	if err != nil || len(pairs) != 0 || len(d.calls) != 0 {
		t.Errorf("ScheduleStep with no ready tasks = %v, %v", pairs, err)
	}
}
