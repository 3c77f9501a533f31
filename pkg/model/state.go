package model

// SlotState represents the lifecycle state of a Slot.
type SlotState string

const (
	SlotStateRequested  SlotState = "REQUESTED"
	SlotStateActive     SlotState = "ACTIVE"
	SlotStateFailed     SlotState = "FAILED"
	SlotStateTerminated SlotState = "TERMINATED"
)

// String returns the string representation of the slot state.
func (s SlotState) String() string {
	return string(s)
}

// IsTerminal returns true if the slot can no longer change state.
func (s SlotState) IsTerminal() bool {
	switch s {
	case SlotStateFailed, SlotStateTerminated:
		return true
	}
	return false
}

// ValidSlotTransitions defines the allowed state transitions for Slots.
// A failed decommission leaves the slot ACTIVE, so there is no edge for it.
var ValidSlotTransitions = map[SlotState][]SlotState{
	SlotStateRequested: {SlotStateActive, SlotStateFailed},
	SlotStateActive:    {SlotStateTerminated},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s SlotState) CanTransitionTo(next SlotState) bool {
	for _, allowed := range ValidSlotTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DispatchState represents the lifecycle state of a DispatchUnit.
type DispatchState string

const (
	DispatchStatePending    DispatchState = "PENDING"
	DispatchStateDispatched DispatchState = "DISPATCHED"
	DispatchStateCompleted  DispatchState = "COMPLETED"
)

// String returns the string representation of the dispatch state.
func (s DispatchState) String() string {
	return string(s)
}

// IsLive returns true while the unit still represents its node in the ready
// or running set.
func (s DispatchState) IsLive() bool {
	return s == DispatchStatePending || s == DispatchStateDispatched
}

// ValidDispatchTransitions defines the allowed state transitions for DispatchUnits.
var ValidDispatchTransitions = map[DispatchState][]DispatchState{
	DispatchStatePending:    {DispatchStateDispatched},
	DispatchStateDispatched: {DispatchStateCompleted},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s DispatchState) CanTransitionTo(next DispatchState) bool {
	for _, allowed := range ValidDispatchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunState represents the lifecycle controller state of a Run.
type RunState string

const (
	RunStateInitializing RunState = "INITIALIZING"
	RunStateProvisioning RunState = "PROVISIONING"
	RunStateRunning      RunState = "RUNNING"
	RunStateDraining     RunState = "DRAINING"
	RunStateTerminated   RunState = "TERMINATED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run accepts no further events.
func (s RunState) IsTerminal() bool {
	return s == RunStateTerminated
}

// ValidRunTransitions defines the allowed state transitions for Runs.
// INITIALIZING goes straight to DRAINING for an empty workflow, and any
// non-terminal state may be cut short by the end-of-run signal.
var ValidRunTransitions = map[RunState][]RunState{
	RunStateInitializing: {RunStateProvisioning, RunStateDraining, RunStateTerminated},
	RunStateProvisioning: {RunStateRunning, RunStateTerminated},
	RunStateRunning:      {RunStateDraining, RunStateTerminated},
	RunStateDraining:     {RunStateTerminated},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
