package decision

import (
	"encoding/json"

	"github.com/rendis/conclave/pkg/schema"
)

// Context is what an external referee (a browser, a terminal, an MCP client)
// needs to break the tie: the question, the candidates and the debate so far.
type Context struct {
	Task      string                  `json:"task"`
	Topic     string                  `json:"topic"`
	Options   []schema.DecisionOption `json:"options"`
	Debate    []Turn                  `json:"debate,omitempty"`
	Exchanges int                     `json:"exchanges"`
	StepIndex int                     `json:"step_index"`
}

// Turn is one agent message from the debate phase.
type Turn struct {
	Agent   schema.Agent `json:"agent"`
	Role    schema.Role  `json:"role,omitempty"`
	Action  string       `json:"action,omitempty"`
	Content string       `json:"content"`
}

// BuildContext assembles the decision context from a snapshot whose gate is
// open. It returns nil when nothing is pending.
func BuildContext(state schema.RunState) *Context {
	if state.PendingDecision == nil {
		return nil
	}
	idx := *state.PendingDecision
	if idx < 0 || idx >= len(state.Steps) || state.Steps[idx].Disagreement == nil {
		return nil
	}
	d := state.Steps[idx].Disagreement

	dc := &Context{
		Task:      state.Task,
		Topic:     d.Topic,
		Options:   append([]schema.DecisionOption(nil), d.Options...),
		Exchanges: state.Exchanges(),
		StepIndex: idx,
	}
	for _, s := range state.Steps[:idx] {
		if s.Phase == schema.PhaseDebate && s.Agent != "" {
			dc.Debate = append(dc.Debate, Turn{Agent: s.Agent, Role: s.Role, Action: s.Action, Content: s.Content})
		}
	}
	return dc
}

// MarshalContext encodes dc, falling back to an empty object.
func MarshalContext(dc *Context) json.RawMessage {
	if dc == nil {
		return json.RawMessage(`{}`)
	}
	data, err := json.Marshal(dc)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
