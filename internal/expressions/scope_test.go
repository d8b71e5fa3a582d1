package expressions

import (
	"testing"

	"github.com/rendis/conclave/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestNewScope_BeforeDecision(t *testing.T) {
	s := NewScope(schema.RunState{Task: "Build a login page", Status: schema.RunStatusRunning})

	assert.Equal(t, "Build a login page", s.Task)
	assert.Equal(t, 0, s.Context["exchanges"])
	assert.Empty(t, s.Decision)
}

func TestNewScope_AfterDecision(t *testing.T) {
	s := NewScope(decidedState("t", 1))

	assert.Equal(t, 3, s.Context["exchanges"])
	assert.Equal(t, 4, s.Context["total"])
	assert.Equal(t, 2, s.Run["steps"])
	assert.Equal(t, 1, s.Decision["index"])
	assert.Equal(t, "Event-Driven Real-Time First", s.Decision["position"])
	assert.Equal(t, "grok", s.Decision["agent"])
	assert.Equal(t, "Architecture Approach", s.Decision["topic"])
}

func TestNewScope_OutOfRangeChoiceLeavesDecisionEmpty(t *testing.T) {
	s := NewScope(decidedState("t", 5))
	assert.Empty(t, s.Decision)
}

func TestScopeData_IsCopy(t *testing.T) {
	s := NewScope(decidedState("t", 0))
	d := s.Data()
	d[NSDecision].(map[string]any)["position"] = "mutated"

	assert.Equal(t, "Traditional Scalability First", s.Decision["position"])
}

func TestIsPath(t *testing.T) {
	tests := map[string]bool{
		"task":                     true,
		"decision.position":        true,
		"context.exchanges":        true,
		"lower(decision.position)": false,
		"steps.x":                  false,
		"decision..position":       false,
		"run.id + 'x'":             false,
	}
	for in, want := range tests {
		assert.Equal(t, want, isPath(in), in)
	}
}
