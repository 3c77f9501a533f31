package model

// Event is an inbound lifecycle notification from the execution substrate.
type Event interface {
	// At returns the substrate clock value at which the event was delivered.
	At() float64
}

// SlotCreateAck acknowledges a slot creation request.
type SlotCreateAck struct {
	SlotID  int
	Success bool
	Time    float64
}

func (e SlotCreateAck) At() float64 { return e.Time }

// SlotTerminateAck acknowledges a slot termination request.
type SlotTerminateAck struct {
	SlotID  int
	Success bool
	Time    float64
}

func (e SlotTerminateAck) At() float64 { return e.Time }

// TaskCompleted reports that a dispatch unit finished on its slot.
type TaskCompleted struct {
	UnitID int
	SlotID int
	Time   float64
}

func (e TaskCompleted) At() float64 { return e.Time }

// EndOfRun is the substrate's signal that no further events will arrive.
type EndOfRun struct {
	Time float64
}

func (e EndOfRun) At() float64 { return e.Time }
