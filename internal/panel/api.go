package panel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rendis/conclave/internal/decision"
	"github.com/rendis/conclave/pkg/schema"
)

// handleStartRun submits a task and starts a new run.
func (s *PanelServer) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Task string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	runID, err := s.deps.Runner.Start(r.Context(), body.Task)
	if err != nil {
		writeConclaveError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleChoose resolves the open decision. choice is either the option
// index or a string naming the index, the proposing agent or the position.
func (s *PanelServer) handleChoose(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Choice json.RawMessage `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(body.Choice) == 0 || bytes.Equal(body.Choice, []byte("null")) {
		writeError(w, http.StatusBadRequest, "choice is required")
		return
	}

	choice, err := s.parseChoice(body.Choice)
	if err != nil {
		writeConclaveError(w, err)
		return
	}

	if err := s.deps.Runner.Choose(r.Context(), choice); err != nil {
		writeConclaveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "choice": choice})
}

func (s *PanelServer) parseChoice(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, schema.NewError(schema.ErrCodeValidation, "choice must be a number or a string")
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	return decision.ParseChoice(s.deps.Runner.Snapshot().Disagreement(), text)
}

// handleState returns the current snapshot, or the result of the jq
// expression in ?q= evaluated against it.
func (s *PanelServer) handleState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusOK, s.deps.Runner.Snapshot())
		return
	}

	result, err := s.deps.Runner.Query(r.Context(), q)
	if err != nil {
		writeConclaveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleScript returns the script being played.
func (s *PanelServer) handleScript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Runner.Script())
}
