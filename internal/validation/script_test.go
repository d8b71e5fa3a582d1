package validation

import (
	"path/filepath"
	"testing"

	"github.com/rendis/conclave/internal/script"
	"github.com/rendis/conclave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *ScriptValidator {
	t.Helper()
	sv, err := NewScriptValidator()
	require.NoError(t, err)
	return sv
}

// minimalScript returns a small valid script with one gate.
func minimalScript() *schema.Script {
	return &schema.Script{
		Name: "mini",
		Phases: []schema.PhaseDefinition{{
			ID:    "only",
			Label: "Only",
			Steps: []schema.StepTemplate{
				{Phase: schema.PhaseInit, Agent: schema.AgentClaude, Role: schema.RoleCoordinator, Content: "${{ task }}"},
				{
					Phase: schema.PhaseDisagreement,
					Type:  schema.StepTypeUserInputNeeded,
					Disagreement: &schema.DisagreementTemplate{
						Topic: "Pick",
						Options: []schema.DecisionOption{
							{Agent: schema.AgentClaude, Position: "A", Reasoning: "a"},
							{Agent: schema.AgentGrok, Position: "B", Reasoning: "b"},
						},
					},
				},
				{Phase: schema.PhaseFinal, Type: schema.StepTypeTeamResult, When: "has(decision.position)", Content: "${{ decision.position }}"},
			},
		}},
	}
}

func TestScriptValidator_Default(t *testing.T) {
	result := newValidator(t).Validate(script.MustDefault())
	assert.True(t, result.Valid(), "%+v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestScriptValidator_ExampleScripts(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "scripts", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	sv := newValidator(t)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := script.LoadFile(path)
			require.NoError(t, err)
			result := sv.Validate(s)
			assert.True(t, result.Valid(), "%+v", result.Errors)
		})
	}
}

func TestScriptValidator_Minimal(t *testing.T) {
	assert.NoError(t, newValidator(t).ValidateScript(minimalScript()))
}

func TestScriptValidator_Nil(t *testing.T) {
	result := newValidator(t).Validate(nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nil")
}

func TestScriptValidator_Structural(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *schema.Script)
	}{
		{"missing name", func(s *schema.Script) { s.Name = "" }},
		{"no phases", func(s *schema.Script) { s.Phases = nil }},
		{"unknown agent", func(s *schema.Script) { s.Phases[0].Steps[0].Agent = "bard" }},
		{"unknown phase", func(s *schema.Script) { s.Phases[0].Steps[0].Phase = "warmup" }},
		{"bad pause", func(s *schema.Script) { s.Phases[0].Steps[0].Pause = "soon" }},
		{"three options", func(s *schema.Script) {
			d := s.Phases[0].Steps[1].Disagreement
			d.Options = append(d.Options, schema.DecisionOption{Agent: schema.AgentGemini, Position: "C", Reasoning: "c"})
		}},
		{"user agent on step", func(s *schema.Script) { s.Phases[0].Steps[0].Agent = schema.AgentUser }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := minimalScript()
			tt.mutate(s)
			result := newValidator(t).Validate(s)
			assert.False(t, result.Valid())
		})
	}
}

func TestScriptValidator_Semantic(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *schema.Script)
		message string
	}{
		{"no gate", func(s *schema.Script) {
			s.Phases[0].Steps = append(s.Phases[0].Steps[:1], s.Phases[0].Steps[2])
			s.Phases[0].Steps[1].When = ""
			s.Phases[0].Steps[1].Content = "done"
		}, "exactly one disagreement"},
		{"two gates", func(s *schema.Script) {
			s.Phases[0].Steps = append(s.Phases[0].Steps, s.Phases[0].Steps[1])
		}, "exactly one disagreement"},
		{"gate type without payload", func(s *schema.Script) {
			s.Phases[0].Steps[0].Type = schema.StepTypeUserInputNeeded
		}, "requires a disagreement block"},
		{"scripted error step", func(s *schema.Script) {
			s.Phases[0].Steps[0].Type = schema.StepTypeError
		}, "cannot be scripted"},
		{"guard does not compile", func(s *schema.Script) {
			s.Phases[0].Steps[2].When = "has(decision."
		}, "CEL compile error"},
		{"decision before gate", func(s *schema.Script) {
			s.Phases[0].Steps[0].Content = "${{ decision.position }}"
		}, "before the gate"},
		{"unclosed placeholder", func(s *schema.Script) {
			s.Phases[0].Steps[0].Content = "${{ task"
		}, "unclosed"},
		{"bad expression", func(s *schema.Script) {
			s.Phases[0].Steps[2].Content = "${{ lower( }}"
		}, "expr compile error"},
		{"referee role on agent", func(s *schema.Script) {
			s.Phases[0].Steps[0].Context = &schema.ContextTemplate{Agent: schema.AgentClaude, Role: schema.RoleReferee, Content: "x"}
		}, "referee"},
		{"duplicate phase id", func(s *schema.Script) {
			s.Phases = append(s.Phases, schema.PhaseDefinition{
				ID: "only", Label: "Again",
				Steps: []schema.StepTemplate{{Phase: schema.PhaseFinal, Content: "x"}},
			})
		}, "duplicate phase id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := minimalScript()
			tt.mutate(s)
			result := newValidator(t).Validate(s)
			require.False(t, result.Valid())

			var msgs []string
			for _, e := range result.Errors {
				msgs = append(msgs, e.Message)
			}
			assert.Contains(t, joinLines(msgs), tt.message)
		})
	}
}

func TestScriptValidator_Warnings(t *testing.T) {
	s := minimalScript()
	s.Phases[0].Steps[0].Pause = "30s"

	result := newValidator(t).Validate(s)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "phases[0].steps[0].pause", result.Warnings[0].Path)
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
