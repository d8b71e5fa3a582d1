package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunState_Exchanges(t *testing.T) {
	r := RunState{Context: []ContextEntry{
		{Agent: AgentClaude, Role: RoleProgrammer},
		{Agent: AgentGemini, Role: RoleResearcher},
		{Agent: AgentGrok, Role: RoleAnalyst},
		{Agent: AgentUser, Role: RoleReferee},
	}}
	assert.Equal(t, 3, r.Exchanges())
}

func TestRunState_Disagreement(t *testing.T) {
	r := RunState{Steps: []WorkflowStep{{Phase: PhaseInit}}}
	assert.Nil(t, r.Disagreement())

	d := &DisagreementData{Topic: "Architecture Approach"}
	r.Steps = append(r.Steps, WorkflowStep{Phase: PhaseDisagreement, Type: StepTypeUserInputNeeded, Disagreement: d})
	assert.Same(t, d, r.Disagreement())

	last, ok := r.LastStep()
	require.True(t, ok)
	assert.Equal(t, PhaseDisagreement, last.Phase)
}

func TestWorkflowStep_CloneIsDeep(t *testing.T) {
	orig := WorkflowStep{
		ID:        "step-1",
		Timestamp: time.Now(),
		Disagreement: &DisagreementData{
			Topic:   "t",
			Options: []DecisionOption{{Position: "a"}, {Position: "b"}},
		},
	}
	cp := orig.Clone()
	cp.Disagreement.Options[0].Position = "changed"
	cp.Disagreement.Topic = "changed"

	assert.Equal(t, "a", orig.Disagreement.Options[0].Position)
	assert.Equal(t, "t", orig.Disagreement.Topic)
}

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
	assert.False(t, RunStatusAwaitingDecision.IsTerminal())
	assert.False(t, RunStatusIdle.IsTerminal())
}
