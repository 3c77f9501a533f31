// Package sim is a discrete-event execution substrate for the broker. It
// acknowledges slot requests and completes dispatched tasks on a simulated
// clock, feeding each outcome back to the broker in time order.
package sim

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"

	"github.com/me/vmbroker/internal/broker"
	"github.com/me/vmbroker/pkg/model"
)

// DefaultTaskLength is the length in million instructions of a task with no
// duration expression.
const DefaultTaskLength = 5000

// Config holds simulator configuration.
type Config struct {
	// ProvisionDelay is the time between a slot creation request and its ack.
	ProvisionDelay float64
	// TerminateDelay is the time between a slot termination request and its ack.
	TerminateDelay float64
	// TaskLength is the work per task in million instructions.
	TaskLength float64
	// DurationExpr overrides TaskLength/MIPS when set.
	DurationExpr string
}

// DefaultConfig returns a simulator with instant acks and 5000 MI tasks.
func DefaultConfig() Config {
	return Config{TaskLength: DefaultTaskLength}
}

// Simulator drives one broker run to completion.
type Simulator struct {
	cfg      Config
	broker   *broker.Broker
	duration *durationExpr
	logger   *slog.Logger

	queue eventQueue
	seq   uint64
	clock float64
	mips  map[int]float64
}

// New creates a Simulator and the broker it drives for wf.
func New(wf *model.Workflow, bcfg broker.Config, cfg Config, logger *slog.Logger) (*Simulator, error) {
	if cfg.ProvisionDelay < 0 || cfg.TerminateDelay < 0 {
		return nil, fmt.Errorf("simulator delays must be non-negative")
	}
	s := &Simulator{
		cfg:    cfg,
		logger: logger.With("component", "sim"),
		mips:   make(map[int]float64),
	}
	if cfg.DurationExpr != "" {
		d, err := compileDuration(cfg.DurationExpr)
		if err != nil {
			return nil, err
		}
		s.duration = d
	}

	b, err := broker.New(wf, s, bcfg, logger)
	if err != nil {
		return nil, err
	}
	s.broker = b
	return s, nil
}

// Simulate runs wf on a fresh simulator and returns the final run record.
func Simulate(ctx context.Context, wf *model.Workflow, bcfg broker.Config, cfg Config, logger *slog.Logger) (*model.Run, error) {
	s, err := New(wf, bcfg, cfg, logger)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

// Run starts the broker at time zero and delivers events until none remain,
// then signals end of run. It returns the broker's final run record.
func (s *Simulator) Run(ctx context.Context) (*model.Run, error) {
	if err := s.broker.Start(s.clock); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	for s.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := heap.Pop(&s.queue).(pending)
		s.clock = p.ev.At()
		s.logger.Debug("deliver", "event", fmt.Sprintf("%T", p.ev), "time", s.clock)
		if err := s.broker.HandleEvent(p.ev); broker.IsFatal(err) {
			return nil, fmt.Errorf("at time %.2f: %w", s.clock, err)
		}
	}

	if err := s.broker.HandleEvent(model.EndOfRun{Time: s.clock}); broker.IsFatal(err) {
		return nil, fmt.Errorf("end of run: %w", err)
	}
	return s.broker.Run(), nil
}

// Clock returns the current simulated time.
func (s *Simulator) Clock() float64 { return s.clock }

// RequestSlotCreation schedules a successful creation ack.
func (s *Simulator) RequestSlotCreation(slotID int, capacity model.Capacity) error {
	s.mips[slotID] = float64(capacity.MIPS)
	s.schedule(model.SlotCreateAck{SlotID: slotID, Success: true, Time: s.clock + s.cfg.ProvisionDelay})
	return nil
}

// RequestSlotTermination schedules a successful termination ack.
func (s *Simulator) RequestSlotTermination(slotID int) error {
	s.schedule(model.SlotTerminateAck{SlotID: slotID, Success: true, Time: s.clock + s.cfg.TerminateDelay})
	return nil
}

// DispatchTask schedules the unit's completion after the task's duration.
func (s *Simulator) DispatchTask(unitID int, task model.TaskNode, slotID int) error {
	d, err := s.taskDuration(task, slotID)
	if err != nil {
		return err
	}
	s.schedule(model.TaskCompleted{UnitID: unitID, SlotID: slotID, Time: s.clock + d})
	return nil
}

func (s *Simulator) taskDuration(task model.TaskNode, slotID int) (float64, error) {
	mips, ok := s.mips[slotID]
	if !ok {
		return 0, &model.UnknownSlotError{ID: slotID}
	}
	if s.duration != nil {
		return s.duration.eval(task, mips, s.cfg.TaskLength)
	}
	if mips <= 0 {
		return 0, fmt.Errorf("slot %d has no MIPS rating", slotID)
	}
	return s.cfg.TaskLength / mips, nil
}

func (s *Simulator) schedule(ev model.Event) {
	heap.Push(&s.queue, pending{ev: ev, seq: s.seq})
	s.seq++
}
