package model

// Capacity describes the size of a slot. The scheduler never inspects it;
// it is handed to the substrate with each creation request.
type Capacity struct {
	MIPS          int    `json:"mips" yaml:"mips"`
	PEs           int    `json:"pes" yaml:"pes"`
	RAMMB         int    `json:"ram_mb" yaml:"ram_mb"`
	BandwidthMbps int64  `json:"bandwidth_mbps" yaml:"bandwidth_mbps"`
	ImageSizeMB   int64  `json:"image_size_mb" yaml:"image_size_mb"`
	VMM           string `json:"vmm" yaml:"vmm"`
}

// DefaultCapacity returns the size used when none is configured: a single
// 10 MIPS processor with 512 MB of RAM on a Xen host.
func DefaultCapacity() Capacity {
	return Capacity{
		MIPS:          10,
		PEs:           1,
		RAMMB:         512,
		BandwidthMbps: 1000,
		ImageSizeMB:   10000,
		VMM:           "Xen",
	}
}

// Slot is an elastic compute unit that runs at most one dispatch unit at a time.
type Slot struct {
	ID            int       `json:"id"`
	Capacity      Capacity  `json:"capacity"`
	State         SlotState `json:"state"`
	RequestedAt   float64   `json:"requested_at"`
	StartTime     *float64  `json:"start_time,omitempty"`
	TerminateTime *float64  `json:"terminate_time,omitempty"`
}

// AckFailureKind classifies a negative acknowledgement from the substrate.
type AckFailureKind string

const (
	FailureProvisioning AckFailureKind = "provisioning"
	FailureDecommission AckFailureKind = "decommission"
)

// AckFailure records a slot creation or termination the substrate refused.
type AckFailure struct {
	Kind   AckFailureKind `json:"kind"`
	SlotID int            `json:"slot_id"`
	Time   float64        `json:"time"`
}
