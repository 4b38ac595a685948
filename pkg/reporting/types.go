package reporting

import "time"

// RunReport is a complete record of one `pkg/driver` run — a single
// scenario run via Runner, or one trial within a BatchRunner batch.
// Adapted from the teacher's TestReport (pkg/reporting/types.go), with
// the teacher's fault-injection/success-criteria/cleanup-audit fields
// replaced by the EMOE domain's platforms and scenario-port events;
// there is no EMOE equivalent of the teacher's monitoring/detector
// success criteria, so that concept is dropped rather than adapted.
type RunReport struct {
	EmoeID       string    `json:"emoe_id"`
	ScenarioName string    `json:"scenario_name"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     string    `json:"duration"`

	Status  RunStatus `json:"status"`
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`

	Platforms []PlatformInfo `json:"platforms"`
	Events    []EventInfo    `json:"events,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// RunStatus mirrors the teacher's TestStatus, renamed for a driver run
// rather than a chaos test.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusStopped   RunStatus = "stopped"
)

// PlatformInfo describes one platform this run's emoe instantiated,
// adapted from the teacher's TargetInfo (container/service identity)
// to the EMOE domain's platform/template identity.
type PlatformInfo struct {
	Name     string `json:"name"`
	Template string `json:"template"`
	EmoeID   string `json:"emoe_id"`
}

// EventInfo records one scenario-port event sent during a run,
// adapted from the teacher's FaultInfo (fault phase/target/duration)
// to an EMOE scenario event's kind/target/timepoint.
type EventInfo struct {
	Kind      string    `json:"kind"`
	Target    string    `json:"target,omitempty"`
	Timepoint string    `json:"timepoint"`
	SentAt    time.Time `json:"sent_at"`
	OK        bool      `json:"ok"`
	Message   string    `json:"message,omitempty"`
}
