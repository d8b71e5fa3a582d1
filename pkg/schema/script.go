package schema

// Script is the declarative definition the sequencer interprets. Agents,
// dialogue and pacing all live here rather than in code.
type Script struct {
	Name           string            `json:"name" yaml:"name"`
	Version        string            `json:"version,omitempty" yaml:"version,omitempty"`
	FailureMessage string            `json:"failure_message,omitempty" yaml:"failure_message,omitempty"`
	Phases         []PhaseDefinition `json:"phases" yaml:"phases"`
	Metadata       map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// PhaseDefinition groups step templates under a display label.
type PhaseDefinition struct {
	ID    string         `json:"id" yaml:"id"`
	Label string         `json:"label" yaml:"label"`
	Steps []StepTemplate `json:"steps" yaml:"steps"`
}

// StepTemplate describes one step to append. Content and context fields may
// contain ${{ ... }} placeholders.
type StepTemplate struct {
	Phase   Phase    `json:"phase" yaml:"phase"`
	Type    StepType `json:"type,omitempty" yaml:"type,omitempty"`
	Agent   Agent    `json:"agent,omitempty" yaml:"agent,omitempty"`
	Role    Role     `json:"role,omitempty" yaml:"role,omitempty"`
	Action  string   `json:"action,omitempty" yaml:"action,omitempty"`
	Content string   `json:"content,omitempty" yaml:"content,omitempty"`
	When    string   `json:"when,omitempty" yaml:"when,omitempty"`   // CEL guard
	Pause   string   `json:"pause,omitempty" yaml:"pause,omitempty"` // e.g. "800ms", "1s"

	Context      *ContextTemplate      `json:"context,omitempty" yaml:"context,omitempty"`
	Disagreement *DisagreementTemplate `json:"disagreement,omitempty" yaml:"disagreement,omitempty"`
}

// ContextTemplate is a shared-context entry appended right after its step.
type ContextTemplate struct {
	Agent   Agent  `json:"agent" yaml:"agent"`
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// DisagreementTemplate turns its step into the decision gate.
type DisagreementTemplate struct {
	Topic   string           `json:"topic" yaml:"topic"`
	Options []DecisionOption `json:"options" yaml:"options"`
}

// Gate returns the position of the gate-opening template as
// (phase index, step index), or (-1, -1) if the script has none.
func (s *Script) Gate() (int, int) {
	for pi, p := range s.Phases {
		for si, st := range p.Steps {
			if st.Disagreement != nil {
				return pi, si
			}
		}
	}
	return -1, -1
}

// StepCount returns the number of step templates across all phases.
func (s *Script) StepCount() int {
	n := 0
	for _, p := range s.Phases {
		n += len(p.Steps)
	}
	return n
}
