package decision

import (
	"encoding/json"
	"testing"

	"github.com/rendis/conclave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContext(t *testing.T) {
	idx := 3
	state := schema.RunState{
		Task: "Build a login page",
		Steps: []schema.WorkflowStep{
			{Phase: schema.PhaseWork, Agent: schema.AgentClaude, Content: "work"},
			{Phase: schema.PhaseDebate, Type: schema.StepTypeGroupChat, Content: "Team reviewing"},
			{Phase: schema.PhaseDebate, Agent: schema.AgentGemini, Role: schema.RoleCritic, Action: "challenging", Content: "scalability?"},
			{Phase: schema.PhaseDisagreement, Type: schema.StepTypeUserInputNeeded, Disagreement: architecture()},
		},
		Context:         []schema.ContextEntry{{Agent: schema.AgentClaude}},
		PendingDecision: &idx,
	}

	dc := BuildContext(state)
	require.NotNil(t, dc)
	assert.Equal(t, "Architecture Approach", dc.Topic)
	assert.Equal(t, 1, dc.Exchanges)
	assert.Equal(t, 3, dc.StepIndex)
	require.Len(t, dc.Debate, 1)
	assert.Equal(t, "challenging", dc.Debate[0].Action)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(MarshalContext(dc), &decoded))
	assert.Equal(t, "Build a login page", decoded["task"])
}

func TestBuildContext_NothingPending(t *testing.T) {
	assert.Nil(t, BuildContext(schema.RunState{}))

	bad := 7
	assert.Nil(t, BuildContext(schema.RunState{PendingDecision: &bad}))
	assert.JSONEq(t, `{}`, string(MarshalContext(nil)))
}
