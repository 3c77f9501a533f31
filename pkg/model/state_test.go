package model

import "testing"

func TestSlotState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    SlotState
		terminal bool
	}{
		{SlotStateRequested, false},
		{SlotStateActive, false},
		{SlotStateFailed, true},
		{SlotStateTerminated, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("SlotState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestSlotState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  SlotState
		to    SlotState
		valid bool
	}{
		{SlotStateRequested, SlotStateActive, true},
		{SlotStateRequested, SlotStateFailed, true},
		{SlotStateActive, SlotStateTerminated, true},

		{SlotStateRequested, SlotStateTerminated, false},
		{SlotStateActive, SlotStateRequested, false},
		{SlotStateTerminated, SlotStateActive, false},
		{SlotStateFailed, SlotStateActive, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("%s → %s: got %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestDispatchState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  DispatchState
		to    DispatchState
		valid bool
	}{
		{DispatchStatePending, DispatchStateDispatched, true},
		{DispatchStateDispatched, DispatchStateCompleted, true},

		{DispatchStatePending, DispatchStateCompleted, false},
		{DispatchStateCompleted, DispatchStateDispatched, false},
		{DispatchStateDispatched, DispatchStateDispatched, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("%s → %s: got %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestDispatchState_IsLive(t *testing.T) {
	if !DispatchStatePending.IsLive() || !DispatchStateDispatched.IsLive() {
		t.Error("pending and dispatched units should be live")
	}
	if DispatchStateCompleted.IsLive() {
		t.Error("completed unit should not be live")
	}
}

func TestRunState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  RunState
		to    RunState
		valid bool
	}{
		{RunStateInitializing, RunStateProvisioning, true},
		{RunStateInitializing, RunStateDraining, true},
		{RunStateProvisioning, RunStateRunning, true},
		{RunStateProvisioning, RunStateTerminated, true},
		{RunStateRunning, RunStateDraining, true},
		{RunStateDraining, RunStateTerminated, true},

		{RunStateProvisioning, RunStateDraining, false},
		{RunStateDraining, RunStateRunning, false},
		{RunStateTerminated, RunStateRunning, false},
		{RunStateTerminated, RunStateTerminated, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("%s → %s: got %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestRunState_IsTerminal(t *testing.T) {
	for _, s := range []RunState{RunStateInitializing, RunStateProvisioning, RunStateRunning, RunStateDraining} {
		if s.IsTerminal() {
			t.Errorf("RunState(%q).IsTerminal() = true, want false", s)
		}
	}
	if !RunStateTerminated.IsTerminal() {
		t.Error("TERMINATED should be terminal")
	}
}
