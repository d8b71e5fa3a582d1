package panel

import (
	"net/http"

	"github.com/rendis/conclave/pkg/schema"
)

type pageData struct {
	Title   string
	Tagline string
	State   schema.RunState
	// Gate is the disagreement still waiting for a choice, if any.
	Gate *schema.DisagreementData
}

func (s *PanelServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	state := s.deps.Runner.Snapshot()
	data := pageData{
		Title:   "Collaborative AI Team",
		Tagline: "AI models collaborate. You referee disagreements.",
		State:   state,
	}
	if sc := s.deps.Runner.Script(); sc != nil {
		if v, ok := sc.Metadata["title"].(string); ok && v != "" {
			data.Title = v
		}
		if v, ok := sc.Metadata["tagline"].(string); ok && v != "" {
			data.Tagline = v
		}
	}
	if state.PendingDecision != nil {
		data.Gate = state.Steps[*state.PendingDecision].Disagreement
	}
	s.renderPage(w, data)
}
