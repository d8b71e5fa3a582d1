package expressions

import "github.com/rendis/conclave/pkg/schema"

func intPtr(i int) *int { return &i }

// decidedState builds a snapshot after the gate resolved to choice.
func decidedState(task string, choice int) schema.RunState {
	return schema.RunState{
		RunID:  "run-1",
		Task:   task,
		Status: schema.RunStatusRunning,
		Steps: []schema.WorkflowStep{
			{ID: "step-1", Phase: schema.PhaseInit},
			{
				ID:    "step-2",
				Phase: schema.PhaseDisagreement,
				Type:  schema.StepTypeUserInputNeeded,
				Disagreement: &schema.DisagreementData{
					Topic: "Architecture Approach",
					Options: []schema.DecisionOption{
						{Agent: schema.AgentClaude, Position: "Traditional Scalability First", Reasoning: "Proven patterns."},
						{Agent: schema.AgentGrok, Position: "Event-Driven Real-Time First", Reasoning: "Users expect real-time."},
					},
				},
			},
		},
		Context: []schema.ContextEntry{
			{Agent: schema.AgentClaude, Role: schema.RoleProgrammer},
			{Agent: schema.AgentGemini, Role: schema.RoleResearcher},
			{Agent: schema.AgentGrok, Role: schema.RoleAnalyst},
			{Agent: schema.AgentUser, Role: schema.RoleReferee},
		},
		Choice: intPtr(choice),
	}
}
