package schema

import "time"

// Phase is the named stage a step belongs to.
type Phase string

const (
	PhaseInit         Phase = "init"
	PhaseRoles        Phase = "roles"
	PhaseWork         Phase = "work"
	PhaseDebate       Phase = "debate"
	PhaseDisagreement Phase = "disagreement"
	PhaseUserDecision Phase = "user_decision"
	PhaseSynthesis    Phase = "synthesis"
	PhaseFinal        Phase = "final"
	PhaseError        Phase = "error"
)

// StepType distinguishes structural messages from agent messages.
// Agent-authored steps leave it empty.
type StepType string

const (
	StepTypeGroupChat       StepType = "group_chat"
	StepTypeConsensus       StepType = "consensus"
	StepTypeUserInputNeeded StepType = "user_input_needed"
	StepTypeUserReferee     StepType = "user_referee"
	StepTypeTeamAlignment   StepType = "team_alignment"
	StepTypeTeamResult      StepType = "team_result"
	StepTypeError           StepType = "error"
)

// Agent identifies the simulated participant that authored a step.
type Agent string

const (
	AgentClaude Agent = "claude"
	AgentGemini Agent = "gemini"
	AgentGrok   Agent = "grok"

	// AgentUser authors context entries recorded on behalf of the human referee.
	// It never appears on a WorkflowStep.
	AgentUser Agent = "user"
)

// Role is the part an agent plays in a step.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleProgrammer  Role = "programmer"
	RoleResearcher  Role = "researcher"
	RoleAnalyst     Role = "analyst"
	RolePresenter   Role = "presenter"
	RoleCritic      Role = "critic"
	RoleSynthesizer Role = "synthesizer"
	RoleCandidate   Role = "candidate"

	RoleReferee Role = "referee"
)

// Phases lists every valid step phase in script order.
var Phases = []Phase{
	PhaseInit, PhaseRoles, PhaseWork, PhaseDebate, PhaseDisagreement,
	PhaseUserDecision, PhaseSynthesis, PhaseFinal, PhaseError,
}

// StepTypes lists every valid step type.
var StepTypes = []StepType{
	StepTypeGroupChat, StepTypeConsensus, StepTypeUserInputNeeded, StepTypeUserReferee,
	StepTypeTeamAlignment, StepTypeTeamResult, StepTypeError,
}

// Agents lists the simulated agents that may author steps.
var Agents = []Agent{AgentClaude, AgentGemini, AgentGrok}

// Roles lists the roles an agent may take on a step.
var Roles = []Role{
	RoleCoordinator, RoleProgrammer, RoleResearcher, RoleAnalyst,
	RolePresenter, RoleCritic, RoleSynthesizer, RoleCandidate,
}

// WorkflowStep is one entry of the step log. It is never mutated after
// being appended.
type WorkflowStep struct {
	ID           string            `json:"id"`
	Phase        Phase             `json:"phase"`
	Type         StepType          `json:"type,omitempty"`
	Agent        Agent             `json:"agent,omitempty"`
	Role         Role              `json:"role,omitempty"`
	Action       string            `json:"action,omitempty"`
	Content      string            `json:"content"`
	Disagreement *DisagreementData `json:"disagreement,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// DisagreementData is the payload of the user_input_needed step.
type DisagreementData struct {
	Topic   string           `json:"topic"`
	Options []DecisionOption `json:"options"`
}

// DecisionOption is one competing position offered at the decision gate.
type DecisionOption struct {
	Agent     Agent  `json:"agent" yaml:"agent"`
	Position  string `json:"position" yaml:"position"`
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}

// ContextEntry records a contribution to the shared context log.
type ContextEntry struct {
	Agent     Agent     `json:"agent"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a deep copy of the step.
func (s WorkflowStep) Clone() WorkflowStep {
	if s.Disagreement != nil {
		d := *s.Disagreement
		d.Options = append([]DecisionOption(nil), s.Disagreement.Options...)
		s.Disagreement = &d
	}
	return s
}
