// Package broker implements the lifecycle controller that drives a workflow
// run from slot provisioning to final cost report, one substrate event at a
// time.
package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/vmbroker/internal/assign"
	"github.com/me/vmbroker/internal/cost"
	"github.com/me/vmbroker/internal/dag"
	"github.com/me/vmbroker/internal/pool"
	"github.com/me/vmbroker/pkg/model"
)

// Substrate is the execution environment the broker drives: it creates and
// destroys slots and runs dispatched tasks. Outcomes come back as events
// passed to HandleEvent.
type Substrate interface {
	pool.Provisioner
	assign.Dispatcher
}

// Config holds broker configuration.
type Config struct {
	Capacity model.Capacity
	Billing  cost.Policy
}

// DefaultConfig returns the default slot capacity and billing policy.
func DefaultConfig() Config {
	return Config{Capacity: model.DefaultCapacity(), Billing: cost.DefaultPolicy()}
}

// Broker is the lifecycle controller for one workflow run.
//
// Every exported method takes the broker's lock, so events from several
// goroutines are applied one at a time, each fully handled before the next.
type Broker struct {
	mu     sync.Mutex
	wf     *model.Workflow
	cfg    Config
	logger *slog.Logger

	state   model.RunState
	tracker *dag.Tracker
	pool    *pool.Manager
	engine  *assign.Engine

	completed int
	rounds    int
	now       float64
	report    *model.CostReport
}

// New creates a Broker for wf in the INITIALIZING state.
func New(wf *model.Workflow, sub Substrate, cfg Config, logger *slog.Logger) (*Broker, error) {
	if len(wf.Nodes) > 0 && wf.Depth <= 0 {
		return nil, fmt.Errorf("workflow %q: depth must be positive, got %d", wf.Name, wf.Depth)
	}
	tracker, err := dag.NewTracker(wf.Nodes)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", wf.Name, err)
	}
	logger = logger.With("component", "broker", "workflow", wf.Name)
	return &Broker{
		wf:      wf,
		cfg:     cfg,
		logger:  logger,
		state:   model.RunStateInitializing,
		tracker: tracker,
		pool:    pool.NewManager(sub, logger),
		engine:  assign.NewEngine(sub, logger),
	}, nil
}

// Start sizes the slot pool, queues the initially ready tasks, and requests
// the slots. An empty workflow goes straight to DRAINING.
func (b *Broker) Start(now float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != model.RunStateInitializing {
		return b.transitionError(model.RunStateProvisioning)
	}
	b.now = now

	size := b.wf.PoolSize()
	b.logger.Info("run starting", "tasks", len(b.wf.Nodes), "depth", b.wf.Depth, "pool_size", size)

	if err := b.collectReady(); err != nil {
		return err
	}

	if size == 0 {
		return b.beginDraining()
	}
	if err := b.transition(model.RunStateProvisioning); err != nil {
		return err
	}
	if _, err := b.pool.RequestSlots(size, b.cfg.Capacity, now); err != nil {
		return fmt.Errorf("provision slots: %w", err)
	}
	return nil
}

// HandleEvent applies one substrate event. Acknowledgement failures are
// recorded, not returned; a returned error means the event broke an
// invariant and the run should be aborted.
func (b *Broker) HandleEvent(ev model.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state.IsTerminal() {
		return model.ErrRunTerminated
	}
	if b.state == model.RunStateInitializing {
		return fmt.Errorf("event %T before start", ev)
	}
	b.now = ev.At()

	switch e := ev.(type) {
	case model.SlotCreateAck:
		return b.onSlotCreated(e)
	case model.SlotTerminateAck:
		return b.pool.OnTerminateAck(e.SlotID, e.Success, e.Time)
	case model.TaskCompleted:
		return b.onTaskCompleted(e)
	case model.EndOfRun:
		return b.finish()
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

func (b *Broker) onSlotCreated(e model.SlotCreateAck) error {
	if err := b.pool.OnCreateAck(e.SlotID, e.Success, e.Time); err != nil {
		return err
	}
	if !e.Success {
		return nil
	}
	if b.state == model.RunStateDraining {
		// Work is already done; a slot that shows up now would only bill.
		b.logger.Info("late slot decommissioned", "slot_id", e.SlotID, "time", e.Time)
		return b.pool.Terminate(e.SlotID)
	}
	return b.schedule()
}

func (b *Broker) onTaskCompleted(e model.TaskCompleted) error {
	if b.state != model.RunStateRunning {
		return fmt.Errorf("task completion for unit %d in state %s", e.UnitID, b.state)
	}

	unit, err := b.engine.Complete(e.UnitID, e.SlotID, e.Time)
	if err != nil {
		return err
	}
	if err := b.pool.ReleaseIdleSlot(e.SlotID); err != nil {
		return err
	}
	if err := b.tracker.MarkDone(unit.NodeID); err != nil {
		return err
	}
	b.completed++
	b.logger.Info("task completed", "unit_id", unit.ID, "node_id", unit.NodeID, "slot_id", e.SlotID,
		"time", e.Time, "completed", b.completed, "total", len(b.wf.Nodes))

	if err := b.collectReady(); err != nil {
		return err
	}
	if err := b.schedule(); err != nil {
		return err
	}

	if b.completed == len(b.wf.Nodes) {
		return b.beginDraining()
	}
	return nil
}

// collectReady queues every newly eligible node.
func (b *Broker) collectReady() error {
	ids := dag.CollectReady(b.tracker, b.engine.Tracked())
	if len(ids) == 0 {
		return nil
	}
	nodes := make([]model.TaskNode, 0, len(ids))
	for _, id := range ids {
		n, err := b.tracker.Node(id)
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
	}
	_, err := b.engine.Enqueue(nodes, b.now)
	return err
}

// schedule runs one assignment step and counts it as a round if it
// dispatched anything.
func (b *Broker) schedule() error {
	pairs, err := b.engine.ScheduleStep(b.pool, b.now)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return nil
	}
	b.rounds++
	if b.state == model.RunStateProvisioning {
		return b.transition(model.RunStateRunning)
	}
	return nil
}

func (b *Broker) beginDraining() error {
	if err := b.transition(model.RunStateDraining); err != nil {
		return err
	}
	ids, err := b.pool.TerminateAll()
	if err != nil {
		return fmt.Errorf("decommission slots: %w", err)
	}
	b.logger.Info("all tasks completed, draining", "slots", len(ids), "time", b.now)
	return nil
}

func (b *Broker) finish() error {
	if b.state != model.RunStateDraining {
		b.logger.Warn("run ended before all tasks completed",
			"state", b.state, "completed", b.completed, "total", len(b.wf.Nodes))
	}
	if err := b.transition(model.RunStateTerminated); err != nil {
		return err
	}
	b.report = cost.Compute(b.pool.Slots(), b.now, b.cfg.Billing)
	b.logger.Info("run terminated", "time", b.now,
		"billable_seconds", b.report.BillableSeconds, "cost", b.report.Total)
	return nil
}

func (b *Broker) transition(next model.RunState) error {
	if !b.state.CanTransitionTo(next) {
		return b.transitionError(next)
	}
	b.logger.Debug("run state", "from", b.state, "to", next)
	b.state = next
	return nil
}

func (b *Broker) transitionError(next model.RunState) error {
	return &model.InvalidTransitionError{
		Entity: "Run",
		ID:     b.wf.Name,
		From:   b.state.String(),
		To:     next.String(),
	}
}

// State returns the current lifecycle state.
func (b *Broker) State() model.RunState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Completed returns the number of completed tasks.
func (b *Broker) Completed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Rounds returns the number of scheduling steps that dispatched at least one task.
func (b *Broker) Rounds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rounds
}

// Report returns the cost report, or nil until the run has terminated.
func (b *Broker) Report() *model.CostReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.report
}

// Run returns a snapshot of the run. ID and CreatedAt are left for the caller.
func (b *Broker) Run() *model.Run {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &model.Run{
		WorkflowName:   b.wf.Name,
		State:          b.state,
		TaskCount:      len(b.wf.Nodes),
		Depth:          b.wf.Depth,
		PoolSize:       b.pool.Size(),
		CompletedTasks: b.completed,
		Report:         b.report,
		Dispatches:     b.engine.Units(),
		Failures:       b.pool.Failures(),
	}
}

// IsFatal reports whether err from HandleEvent should abort the run.
// Delivering events after termination is not fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, model.ErrRunTerminated)
}
