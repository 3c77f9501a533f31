// Package pool manages the fixed-size pool of compute slots for a run.
package pool

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/me/vmbroker/pkg/model"
)

// Provisioner is the part of the execution substrate that creates and
// destroys slots. Both calls are asynchronous requests; the outcome arrives
// later as an acknowledgement event.
type Provisioner interface {
	RequestSlotCreation(slotID int, capacity model.Capacity) error
	RequestSlotTermination(slotID int) error
}

// Manager tracks slot identities, their lifecycle state, and which active
// slots are idle or busy. Idle slots are handed out in the order they
// became idle.
//
// Manager is not safe for concurrent use. The broker serializes access.
type Manager struct {
	prov   Provisioner
	logger *slog.Logger

	slots       map[int]*model.Slot
	order       []int
	idle        []int
	busy        map[int]bool
	terminating map[int]bool
	failures    []model.AckFailure
	nextID      int
}

// NewManager creates an empty Manager that issues requests through prov.
func NewManager(prov Provisioner, logger *slog.Logger) *Manager {
	return &Manager{
		prov:        prov,
		logger:      logger.With("component", "pool"),
		slots:       make(map[int]*model.Slot),
		busy:        make(map[int]bool),
		terminating: make(map[int]bool),
	}
}

// RequestSlots allocates n slot ids, records each as REQUESTED, and issues
// one creation request per slot.
func (m *Manager) RequestSlots(n int, capacity model.Capacity, now float64) ([]int, error) {
	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		id := m.nextID
		m.nextID++

		m.slots[id] = &model.Slot{
			ID:          id,
			Capacity:    capacity,
			State:       model.SlotStateRequested,
			RequestedAt: now,
		}
		m.order = append(m.order, id)

		m.logger.Info("slot requested", "slot_id", id, "time", now)
		if err := m.prov.RequestSlotCreation(id, capacity); err != nil {
			return ids, fmt.Errorf("request creation of slot %d: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// OnCreateAck records the outcome of a creation request. A successful slot
// becomes ACTIVE and joins the back of the idle set. A failed slot is
// recorded and never contributes capacity.
func (m *Manager) OnCreateAck(slotID int, success bool, ts float64) error {
	slot, ok := m.slots[slotID]
	if !ok {
		return &model.UnknownSlotError{ID: slotID}
	}

	next := model.SlotStateActive
	if !success {
		next = model.SlotStateFailed
	}
	if !slot.State.CanTransitionTo(next) {
		return transitionError(slot, next)
	}
	slot.State = next

	if !success {
		m.failures = append(m.failures, model.AckFailure{Kind: model.FailureProvisioning, SlotID: slotID, Time: ts})
		m.logger.Warn("slot creation failed", "slot_id", slotID, "time", ts)
		return nil
	}

	start := ts
	slot.StartTime = &start
	m.idle = append(m.idle, slotID)
	m.logger.Info("slot created", "slot_id", slotID, "time", ts)
	return nil
}

// OnTerminateAck records the outcome of a termination request. A failed
// termination is recorded and leaves the slot ACTIVE; it is not retried.
func (m *Manager) OnTerminateAck(slotID int, success bool, ts float64) error {
	slot, ok := m.slots[slotID]
	if !ok {
		return &model.UnknownSlotError{ID: slotID}
	}
	delete(m.terminating, slotID)

	if !success {
		m.failures = append(m.failures, model.AckFailure{Kind: model.FailureDecommission, SlotID: slotID, Time: ts})
		m.logger.Warn("slot termination failed", "slot_id", slotID, "time", ts)
		return nil
	}

	if !slot.State.CanTransitionTo(model.SlotStateTerminated) {
		return transitionError(slot, model.SlotStateTerminated)
	}
	slot.State = model.SlotStateTerminated
	end := ts
	slot.TerminateTime = &end
	m.removeIdle(slotID)
	m.logger.Info("slot terminated", "slot_id", slotID, "time", ts)
	return nil
}

// IdleSlots returns idle slot ids, earliest-idle first.
func (m *Manager) IdleSlots() []int {
	out := make([]int, len(m.idle))
	copy(out, m.idle)
	return out
}

// TakeIdleSlot removes and returns the earliest-idle slot and marks it busy.
// It returns model.ErrPoolExhausted when no slot is idle.
func (m *Manager) TakeIdleSlot() (int, error) {
	if len(m.idle) == 0 {
		return 0, model.ErrPoolExhausted
	}
	id := m.idle[0]
	m.idle = m.idle[1:]
	m.busy[id] = true
	return id, nil
}

// ReleaseIdleSlot returns a busy slot to the back of the idle set.
func (m *Manager) ReleaseIdleSlot(slotID int) error {
	slot, ok := m.slots[slotID]
	if !ok {
		return &model.UnknownSlotError{ID: slotID}
	}
	if !m.busy[slotID] {
		return fmt.Errorf("release slot %d: slot is not busy", slotID)
	}
	delete(m.busy, slotID)
	if slot.State != model.SlotStateActive || m.terminating[slotID] {
		return nil
	}
	m.idle = append(m.idle, slotID)
	return nil
}

// IsBusy reports whether the slot currently runs a dispatch unit.
func (m *Manager) IsBusy(slotID int) bool {
	return m.busy[slotID]
}

// TerminateAll issues a decommission request for every ACTIVE slot that
// has not already been asked to terminate, in creation order.
func (m *Manager) TerminateAll() ([]int, error) {
	var ids []int
	for _, id := range m.order {
		if m.slots[id].State != model.SlotStateActive || m.terminating[id] {
			continue
		}
		if err := m.Terminate(id); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Terminate issues a decommission request for one ACTIVE slot and takes it
// out of the idle set.
func (m *Manager) Terminate(slotID int) error {
	slot, ok := m.slots[slotID]
	if !ok {
		return &model.UnknownSlotError{ID: slotID}
	}
	if slot.State != model.SlotStateActive {
		return transitionError(slot, model.SlotStateTerminated)
	}
	m.terminating[slotID] = true
	m.removeIdle(slotID)
	m.logger.Info("slot termination requested", "slot_id", slotID)
	if err := m.prov.RequestSlotTermination(slotID); err != nil {
		return fmt.Errorf("request termination of slot %d: %w", slotID, err)
	}
	return nil
}

// Slot returns a copy of one slot.
func (m *Manager) Slot(slotID int) (model.Slot, error) {
	slot, ok := m.slots[slotID]
	if !ok {
		return model.Slot{}, &model.UnknownSlotError{ID: slotID}
	}
	return *slot, nil
}

// Slots returns copies of all slots in creation order.
func (m *Manager) Slots() []model.Slot {
	out := make([]model.Slot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.slots[id])
	}
	return out
}

// Failures returns the recorded negative acknowledgements in arrival order.
func (m *Manager) Failures() []model.AckFailure {
	out := make([]model.AckFailure, len(m.failures))
	copy(out, m.failures)
	return out
}

// Size returns the number of slots ever requested.
func (m *Manager) Size() int {
	return len(m.order)
}

func (m *Manager) removeIdle(slotID int) {
	for i, id := range m.idle {
		if id == slotID {
			m.idle = append(m.idle[:i], m.idle[i+1:]...)
			return
		}
	}
}

func transitionError(slot *model.Slot, next model.SlotState) error {
	return &model.InvalidTransitionError{
		Entity: "Slot",
		ID:     strconv.Itoa(slot.ID),
		From:   slot.State.String(),
		To:     next.String(),
	}
}
