package expressions

import (
	"context"
	"testing"

	"github.com/rendis/conclave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEngine_Evaluate(t *testing.T) {
	e := NewExprEngine()
	data := NewScope(decidedState("Build a login page", 0)).Data()

	tests := []struct {
		expr string
		want any
	}{
		{"upper(task)", "BUILD A LOGIN PAGE"},
		{"lower(decision.position)", "traditional scalability first"},
		{"context.exchanges + 1", 4},
		{`decision.index == 0 ? "first" : "second"`, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tt.expr, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExprEngine_Errors(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "  ", nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(context.Background(), "1 +", nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	assert.NoError(t, e.Check("lower(decision.position)"))
	assert.Error(t, e.Check("lower("))
}
