package diagram

import (
	"fmt"

	"github.com/rendis/conclave/pkg/schema"
)

// overlay matches the run's step log against the script in order and marks
// each node. Guarded templates without a matching step are skipped once the
// log has moved past them.
func overlay(m *DiagramModel, s *schema.Script, state *schema.RunState) {
	if state.StartedAt == nil && len(state.Steps) == 0 {
		return
	}
	mark(m, startID, StatusCompleted, "")

	steps := state.Steps
	cursor := 0
	current := true // the first unmatched template is the one in flight

	for pi := range s.Phases {
		phase := &s.Phases[pi]
		for si := range phase.Steps {
			tmpl := &phase.Steps[si]
			id := fmt.Sprintf("%s_%d", phase.ID, si)

			if cursor < len(steps) && matches(tmpl, steps[cursor]) {
				status := StatusCompleted
				if state.PendingDecision != nil && *state.PendingDecision == cursor {
					status = StatusSuspended
					current = false
				}
				mark(m, id, status, steps[cursor].ID)
				if tmpl.Disagreement != nil {
					markOptions(m, id, len(tmpl.Disagreement.Options), state.Choice)
				}
				cursor++
				continue
			}

			switch {
			case tmpl.When != "" && (state.Choice != nil || !state.IsRunning):
				mark(m, id, StatusSkipped, "")
			case state.IsRunning && current:
				mark(m, id, StatusRunning, "")
				current = false
			default:
				mark(m, id, StatusPending, "")
			}
		}
	}

	switch state.Status {
	case schema.RunStatusCompleted:
		mark(m, endID, StatusCompleted, "")
	case schema.RunStatusFailed:
		mark(m, endID, StatusFailed, "")
	default:
		mark(m, endID, StatusPending, "")
	}
}

func matches(tmpl *schema.StepTemplate, step schema.WorkflowStep) bool {
	if tmpl.Phase != step.Phase || tmpl.Agent != step.Agent {
		return false
	}
	if tmpl.Disagreement != nil {
		return step.Type == schema.StepTypeUserInputNeeded
	}
	return tmpl.Type == step.Type
}

func markOptions(m *DiagramModel, gateID string, n int, choice *int) {
	for i := range n {
		status := StatusPending
		if choice != nil {
			status = StatusSkipped
			if *choice == i {
				status = StatusCompleted
			}
		}
		mark(m, fmt.Sprintf("%s_opt%d", gateID, i), status, "")
	}
}

func mark(m *DiagramModel, id, status, stepID string) {
	if n := m.Node(id); n != nil {
		n.Status = &StatusOverlay{Status: status, StepID: stepID}
	}
}
