package panel

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rendis/conclave/pkg/schema"
)

// add returns a + b.
func add(a, b int) int { return a + b }

// clock formats a step timestamp for the log.
func clock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04:05")
}

// stepClass returns the CSS class a step is rendered with.
func stepClass(step schema.WorkflowStep) string {
	switch step.Type {
	case schema.StepTypeGroupChat:
		return "step-group"
	case schema.StepTypeConsensus, schema.StepTypeTeamAlignment:
		return "step-consensus"
	case schema.StepTypeUserInputNeeded:
		return "step-disagreement"
	case schema.StepTypeUserReferee:
		return "step-referee"
	case schema.StepTypeTeamResult:
		return "step-result"
	case schema.StepTypeError:
		return "step-error"
	}
	if step.Agent != "" {
		return "step-agent agent-" + string(step.Agent)
	}
	return "step-system"
}

// agentLabel capitalizes an agent name for display.
func agentLabel(a schema.Agent) string {
	switch a {
	case schema.AgentClaude:
		return "Claude"
	case schema.AgentGemini:
		return "Gemini"
	case schema.AgentGrok:
		return "Grok"
	case schema.AgentUser:
		return "You"
	default:
		return string(a)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeConclaveError maps a ConclaveError code onto an HTTP status.
func writeConclaveError(w http.ResponseWriter, err error) {
	var ce *schema.ConclaveError
	if !errors.As(err, &ce) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch ce.Code {
	case schema.ErrCodeValidation:
		status = http.StatusBadRequest
	case schema.ErrCodeNotFound:
		status = http.StatusNotFound
	case schema.ErrCodeConflict, schema.ErrCodeNoPendingDecision, schema.ErrCodeDecisionClosed:
		status = http.StatusConflict
	case schema.ErrCodeCancelled:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"error":   ce.Message,
		"code":    ce.Code,
		"details": ce.Details,
	})
}
