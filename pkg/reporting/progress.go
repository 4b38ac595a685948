package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat is the progress narration's output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// LiveRunState is a snapshot of an in-flight driver run, adapted from
// the teacher's LiveTestState (pkg/reporting/types.go) to the EMOE
// domain: active faults become a count of scenario events sent, and the
// teacher's criteria/metrics fields (no EMOE equivalent) are dropped.
type LiveRunState struct {
	EmoeID       string        `json:"emoe_id"`
	ScenarioName string        `json:"scenario_name"`
	State        string        `json:"state"`
	StartTime    time.Time     `json:"start_time"`
	Elapsed      time.Duration `json:"elapsed"`
	EventsSent   int           `json:"events_sent"`
}

// ProgressReporter narrates `pkg/driver` run progress to stdout,
// adapted from the teacher's ProgressReporter (pkg/reporting/progress.go).
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{format: format, logger: logger}
}

// ReportState reports the current run state.
func (pr *ProgressReporter) ReportState(state LiveRunState) {
	switch pr.format {
	case FormatJSON:
		pr.reportJSON(state)
	case FormatTUI:
		pr.reportTUI(state)
	default:
		pr.reportText(state)
	}
}

// ReportStateTransition reports an emoe state transition.
func (pr *ProgressReporter) ReportStateTransition(from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "state_transition",
			"from_state": from,
			"to_state":   to,
			"timestamp":  time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("state: %s -> %s\n", from, to)
	default:
		fmt.Printf("[STATE] %s -> %s\n", from, to)
	}
}

// ReportEvent reports a scenario event send, adapted from the
// teacher's ReportFaultInjection.
func (pr *ProgressReporter) ReportEvent(event EventInfo) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "scenario_event",
			"detail":    event,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("event: %s at t=%s on %s\n", event.Kind, event.Timepoint, event.Target)
	default:
		fmt.Printf("[EVENT] %s at t=%s on %s\n", event.Kind, event.Timepoint, event.Target)
	}
}

// ReportRunCompleted reports run completion, adapted from the
// teacher's ReportTestCompleted.
func (pr *ProgressReporter) ReportRunCompleted(report *RunReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "run_completed",
			"report":    report,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	default:
		pr.printRunSummary(report)
	}
}

func (pr *ProgressReporter) reportText(state LiveRunState) {
	elapsed := time.Since(state.StartTime).Round(time.Second)
	fmt.Printf("[%s] %s | elapsed: %s | events sent: %d\n",
		time.Now().Format("15:04:05"), state.State, elapsed, state.EventsSent)
}

func (pr *ProgressReporter) reportJSON(state LiveRunState) {
	data, err := json.Marshal(state)
	if err != nil {
		pr.logger.Error("failed to marshal state", "error", err)
		return
	}
	fmt.Println(string(data))
}

func (pr *ProgressReporter) reportTUI(state LiveRunState) {
	pr.clearScreen()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("   Emoe Run: %s\n", state.ScenarioName)
	fmt.Printf("   Emoe ID: %s\n", state.EmoeID)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
	fmt.Printf("state:   %s\n", state.State)
	fmt.Printf("elapsed: %s\n", state.Elapsed.Round(time.Second))
	fmt.Printf("events:  %d sent\n", state.EventsSent)
	fmt.Println(strings.Repeat("-", 80))
}

func (pr *ProgressReporter) printRunSummary(report *RunReport) {
	status := "COMPLETED"
	if !report.Success {
		status = "FAILED"
	}
	if report.Status == StatusStopped {
		status = "STOPPED"
	}

	fmt.Printf("\n[RUN SUMMARY] %s\n", status)
	fmt.Printf("  Scenario:  %s\n", report.ScenarioName)
	fmt.Printf("  Emoe ID:   %s\n", report.EmoeID)
	fmt.Printf("  Duration:  %s\n", report.Duration)
	fmt.Printf("  Platforms: %d\n", len(report.Platforms))
	fmt.Printf("  Events:    %d\n", len(report.Events))
	if len(report.Errors) > 0 {
		fmt.Printf("  Errors:    %d\n", len(report.Errors))
	}
	fmt.Println()
}

func (pr *ProgressReporter) clearScreen() {
	fmt.Print("\033[2J\033[H")
}

func (pr *ProgressReporter) clearLine() {
	fmt.Print("\033[K")
}
