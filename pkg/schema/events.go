package schema

// Event types published on every run state change.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"

	EventStepAppended    = "step_appended"
	EventContextAppended = "context_appended"
	EventPhaseChanged    = "phase_changed"
	EventStepSkipped     = "step_skipped"

	EventDecisionRequested = "decision_requested"
	EventDecisionResolved  = "decision_resolved"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusIdle             RunStatus = "idle"
	RunStatusRunning          RunStatus = "running"
	RunStatusAwaitingDecision RunStatus = "awaiting_decision"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusFailed           RunStatus = "failed"
)

// IsTerminal reports whether no further transition can leave the status
// without a new run being started.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}
