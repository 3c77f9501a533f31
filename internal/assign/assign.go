// Package assign pairs ready task nodes with idle slots and owns the
// dispatch units that represent each attempt to run a node.
package assign

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/me/vmbroker/pkg/model"
)

// Dispatcher is the part of the execution substrate that runs a task on a slot.
type Dispatcher interface {
	DispatchTask(unitID int, task model.TaskNode, slotID int) error
}

// SlotSource hands out idle slots, earliest-idle first.
type SlotSource interface {
	IdleSlots() []int
	TakeIdleSlot() (int, error)
}

// Pair is one task-to-slot pairing.
type Pair struct {
	TaskID string
	SlotID int
}

// PairFIFO pairs the head of ready with the head of idle until either runs
// out. ready is in discovery order and idle in return-to-idle order; no
// other policy applies.
func PairFIFO(ready []string, idle []int) []Pair {
	n := min(len(ready), len(idle))
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{TaskID: ready[i], SlotID: idle[i]}
	}
	return pairs
}

// Engine creates dispatch units for newly ready nodes, queues them in
// discovery order, and dispatches them onto idle slots.
//
// Engine is not safe for concurrent use. The broker serializes access.
type Engine struct {
	disp   Dispatcher
	logger *slog.Logger

	units   map[int]*model.DispatchUnit
	tasks   map[int]model.TaskNode
	order   []int
	pending []int
	byNode  map[string]int
	bySlot  map[int]int
	nextID  int
}

// NewEngine creates an Engine that sends dispatch requests through disp.
func NewEngine(disp Dispatcher, logger *slog.Logger) *Engine {
	return &Engine{
		disp:   disp,
		logger: logger.With("component", "assign"),
		units:  make(map[int]*model.DispatchUnit),
		tasks:  make(map[int]model.TaskNode),
		byNode: make(map[string]int),
		bySlot: make(map[int]int),
		nextID: 1,
	}
}

// Enqueue creates one PENDING dispatch unit per node, appended to the ready
// queue in the given order. A node may be represented by at most one unit
// for the whole run.
func (e *Engine) Enqueue(nodes []model.TaskNode, now float64) ([]model.DispatchUnit, error) {
	created := make([]model.DispatchUnit, 0, len(nodes))
	for _, n := range nodes {
		if prev, ok := e.byNode[n.ID]; ok {
			return created, fmt.Errorf("task node %q already has dispatch unit %d", n.ID, prev)
		}
		id := e.nextID
		e.nextID++

		u := &model.DispatchUnit{
			ID:        id,
			NodeID:    n.ID,
			State:     model.DispatchStatePending,
			CreatedAt: now,
		}
		e.units[id] = u
		e.tasks[id] = n
		e.order = append(e.order, id)
		e.pending = append(e.pending, id)
		e.byNode[n.ID] = id
		created = append(created, *u)
		e.logger.Debug("task ready", "unit_id", id, "node_id", n.ID)
	}
	return created, nil
}

// Tracked returns the ids of nodes that already have a dispatch unit.
func (e *Engine) Tracked() map[string]bool {
	out := make(map[string]bool, len(e.byNode))
	for id := range e.byNode {
		out[id] = true
	}
	return out
}

// Ready returns the node ids waiting for a slot, in discovery order.
func (e *Engine) Ready() []string {
	out := make([]string, len(e.pending))
	for i, id := range e.pending {
		out[i] = e.units[id].NodeID
	}
	return out
}

// ScheduleStep pairs queued units with idle slots (FIFO/FIFO), marks each
// unit DISPATCHED, takes the slot out of the idle set, and issues the
// dispatch request. It returns the pairs it made.
func (e *Engine) ScheduleStep(slots SlotSource, now float64) ([]Pair, error) {
	pairs := PairFIFO(e.Ready(), slots.IdleSlots())
	for _, p := range pairs {
		slotID, err := slots.TakeIdleSlot()
		if err != nil {
			return nil, fmt.Errorf("take idle slot for %s: %w", p.TaskID, err)
		}
		if slotID != p.SlotID {
			return nil, fmt.Errorf("idle slot order changed: took %d, paired %d", slotID, p.SlotID)
		}
		if other, busy := e.bySlot[slotID]; busy {
			return nil, fmt.Errorf("slot %d already runs dispatch unit %d", slotID, other)
		}

		unitID := e.pending[0]
		u := e.units[unitID]
		if !u.State.CanTransitionTo(model.DispatchStateDispatched) {
			return nil, transitionError(u, model.DispatchStateDispatched)
		}
		e.pending = e.pending[1:]

		u.State = model.DispatchStateDispatched
		sid := slotID
		u.SlotID = &sid
		at := now
		u.DispatchedAt = &at
		e.bySlot[slotID] = unitID

		e.logger.Info("task dispatched", "unit_id", unitID, "node_id", u.NodeID, "slot_id", slotID, "time", now)
		if err := e.disp.DispatchTask(unitID, e.tasks[unitID], slotID); err != nil {
			return nil, fmt.Errorf("dispatch unit %d to slot %d: %w", unitID, slotID, err)
		}
	}
	return pairs, nil
}

// Complete marks a DISPATCHED unit COMPLETED and frees its slot binding.
// slotID must be the slot the unit was dispatched to.
func (e *Engine) Complete(unitID, slotID int, now float64) (model.DispatchUnit, error) {
	u, ok := e.units[unitID]
	if !ok {
		return model.DispatchUnit{}, &model.UnknownDispatchUnitError{ID: unitID}
	}
	if !u.State.CanTransitionTo(model.DispatchStateCompleted) {
		return model.DispatchUnit{}, transitionError(u, model.DispatchStateCompleted)
	}
	if *u.SlotID != slotID {
		return model.DispatchUnit{}, fmt.Errorf("dispatch unit %d completed on slot %d but was assigned slot %d", unitID, slotID, *u.SlotID)
	}

	u.State = model.DispatchStateCompleted
	at := now
	u.CompletedAt = &at
	delete(e.bySlot, slotID)
	return *u, nil
}

// Units returns copies of every dispatch unit in creation order.
func (e *Engine) Units() []model.DispatchUnit {
	out := make([]model.DispatchUnit, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.units[id])
	}
	return out
}

// Running returns the number of DISPATCHED units.
func (e *Engine) Running() int {
	return len(e.bySlot)
}

func transitionError(u *model.DispatchUnit, next model.DispatchState) error {
	return &model.InvalidTransitionError{
		Entity: "DispatchUnit",
		ID:     strconv.Itoa(u.ID),
		From:   u.State.String(),
		To:     next.String(),
	}
}
