package expressions

import (
	"context"
	"testing"

	"github.com/rendis/conclave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Paths(t *testing.T) {
	interp := NewInterpolator(nil)
	scope := NewScope(decidedState("Build a login page", 1))

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"no placeholders", "Pulling together all insights...", "Pulling together all insights..."},
		{"task", `Analyzing: "${{ task }}"`, `Analyzing: "Build a login page"`},
		{"tight braces", "${{task}}", "Build a login page"},
		{"int value", "Context Exchanges: ${{ context.exchanges }}", "Context Exchanges: 3"},
		{"multiline", "You chose: ${{ decision.position }}\n\nReasoning: ${{ decision.reasoning }}",
			"You chose: Event-Driven Real-Time First\n\nReasoning: Users expect real-time."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := interp.Render(context.Background(), tt.tmpl, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_Expressions(t *testing.T) {
	interp := NewInterpolator(nil)
	scope := NewScope(decidedState("Build a login page", 1))

	got, err := interp.Render(context.Background(), "aligned on the ${{ lower(decision.position) }} approach", scope)
	require.NoError(t, err)
	assert.Equal(t, "aligned on the event-driven real-time first approach", got)

	got, err = interp.Render(context.Background(), `${{ context.exchanges >= 3 ? "High" : "Low" }}`, scope)
	require.NoError(t, err)
	assert.Equal(t, "High", got)
}

func TestRender_Errors(t *testing.T) {
	interp := NewInterpolator(nil)
	scope := NewScope(schema.RunState{Task: "t"})

	tests := []struct {
		name string
		tmpl string
	}{
		{"unclosed", "hello ${{ task"},
		{"empty", "${{   }}"},
		{"nested", "${{ ${{ task }} }}"},
		{"missing field", "${{ decision.position }}"},
		{"bad expression", "${{ lower( }}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interp.Render(context.Background(), tt.tmpl, scope)
			require.Error(t, err)
			assert.True(t, schema.HasCode(err, schema.ErrCodeInterpolation), err.Error())
		})
	}
}

func TestReferences(t *testing.T) {
	refs := References("a ${{ task }} b ${{lower(decision.position)}} c ${{ open")
	assert.Equal(t, []string{"task", "lower(decision.position)"}, refs)
	assert.Nil(t, References("plain"))
}
