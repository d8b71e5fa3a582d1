package expressions

import (
	"context"
	"testing"

	"github.com/rendis/conclave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoJQQuery_RunState(t *testing.T) {
	e := NewGoJQEngine()
	state := decidedState("Build a login page", 1)
	ctx := context.Background()

	got, err := e.Query(ctx, ".task", state)
	require.NoError(t, err)
	assert.Equal(t, "Build a login page", got)

	got, err = e.Query(ctx, `[.context[] | select(.agent != "user")] | length`, state)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = e.Query(ctx, `.steps[] | select(.type == "user_input_needed") | .disagreement.options[1].position`, state)
	require.NoError(t, err)
	assert.Equal(t, "Event-Driven Real-Time First", got)

	got, err = e.Query(ctx, ".steps[].id", state)
	require.NoError(t, err)
	assert.Equal(t, []any{"step-1", "step-2"}, got)

	got, err = e.Query(ctx, "empty", state)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGoJQ_Errors(t *testing.T) {
	e := NewGoJQEngine()
	ctx := context.Background()

	_, err := e.Evaluate(ctx, "", nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(ctx, ".[", map[string]any{})
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(ctx, `error("boom")`, map[string]any{})
	assert.True(t, schema.HasCode(err, schema.ErrCodeExecution))

	_, err = e.Query(ctx, ".", []int{1})
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	got, err := e.Evaluate(ctx, "$ENV | length", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
