package schema

import "time"

// RunState is a read-only snapshot of the live run.
type RunState struct {
	RunID        string         `json:"run_id,omitempty"`
	Task         string         `json:"task"`
	Status       RunStatus      `json:"status"`
	Steps        []WorkflowStep `json:"steps"`
	Context      []ContextEntry `json:"context"`
	CurrentPhase string         `json:"current_phase"`
	IsRunning    bool           `json:"is_running"`

	// PendingDecision is the index in Steps of the user_input_needed step
	// whose gate is still open.
	PendingDecision *int `json:"pending_decision,omitempty"`
	// Choice is the option index that resolved the gate.
	Choice *int `json:"choice,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Exchanges counts the context entries authored by agents, excluding the
// referee's own decision record.
func (r RunState) Exchanges() int {
	n := 0
	for _, c := range r.Context {
		if c.Agent != AgentUser {
			n++
		}
	}
	return n
}

// Disagreement returns the payload of the run's user_input_needed step, if any.
func (r RunState) Disagreement() *DisagreementData {
	for _, s := range r.Steps {
		if s.Type == StepTypeUserInputNeeded {
			return s.Disagreement
		}
	}
	return nil
}

// LastStep returns the most recently appended step.
func (r RunState) LastStep() (WorkflowStep, bool) {
	if len(r.Steps) == 0 {
		return WorkflowStep{}, false
	}
	return r.Steps[len(r.Steps)-1], true
}
