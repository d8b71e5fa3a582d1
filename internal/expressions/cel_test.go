package expressions

import (
	"context"
	"testing"

	"github.com/rendis/conclave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELGuard(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	before := NewScope(schema.RunState{Task: "Build a login page"})
	after := NewScope(decidedState("Build a login page", 0))

	tests := []struct {
		name  string
		guard string
		scope Scope
		want  bool
	}{
		{"empty guard passes", "", before, true},
		{"decision absent", "has(decision.position)", before, false},
		{"decision present", "has(decision.position)", after, true},
		{"index compare", "decision.index == 0", after, true},
		{"task predicate", `task.contains("login")`, before, true},
		{"exchanges", "context.exchanges >= 3", after, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := e.Guard(ctx, tt.guard, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCELGuard_NonBool(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Guard(context.Background(), "task", NewScope(schema.RunState{Task: "x"}))
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestCELCheck(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	assert.NoError(t, e.Check("has(decision.position)"))
	assert.Error(t, e.Check("has(decision."))
	assert.Error(t, e.Check("unknown_var == 1"))
}

func TestCELEvaluate_MissingNamespacesDefault(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	v, err := e.Evaluate(context.Background(), "size(decision) == 0 && task == ''", nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}
