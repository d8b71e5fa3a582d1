package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/rendis/conclave/internal/expressions"
	"github.com/rendis/conclave/pkg/schema"
)

// maxPause flags pauses long enough to look like a typo.
const maxPause = 10 * time.Second

// ExpressionChecker compiles an expression without evaluating it.
type ExpressionChecker interface {
	Check(expression string) error
}

// validateSemantic covers the rules JSON Schema cannot express:
// exactly one gate, unique phase IDs, parseable pauses, compilable guards
// and placeholders, and decision references only after the gate.
func validateSemantic(s *schema.Script, guards, templates ExpressionChecker) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	gates := 0
	seenPhase := make(map[string]bool, len(s.Phases))
	for pi, p := range s.Phases {
		ppath := fmt.Sprintf("phases[%d]", pi)
		if seenPhase[p.ID] {
			result.AddError(ppath+".id", schema.ErrCodeValidation, fmt.Sprintf("duplicate phase id %q", p.ID))
		}
		seenPhase[p.ID] = true

		for si := range p.Steps {
			st := &p.Steps[si]
			path := fmt.Sprintf("%s.steps[%d]", ppath, si)
			afterGate := gates > 0

			if st.Disagreement != nil {
				gates++
				if gates > 1 {
					result.AddError(path+".disagreement", schema.ErrCodeValidation,
						"script must contain exactly one disagreement step")
				}
				if st.Type != "" && st.Type != schema.StepTypeUserInputNeeded {
					result.AddError(path+".type", schema.ErrCodeValidation,
						fmt.Sprintf("disagreement step must have type %q, got %q", schema.StepTypeUserInputNeeded, st.Type))
				}
				if st.Phase != schema.PhaseDisagreement {
					result.AddWarning(path+".phase", schema.ErrCodeValidation,
						fmt.Sprintf("disagreement step usually uses phase %q", schema.PhaseDisagreement))
				}
			} else if st.Type == schema.StepTypeUserInputNeeded {
				result.AddError(path+".type", schema.ErrCodeValidation,
					"user_input_needed step requires a disagreement block")
			}

			if st.Type == schema.StepTypeError || st.Phase == schema.PhaseError {
				result.AddError(path+".phase", schema.ErrCodeValidation,
					"error steps are appended by the sequencer and cannot be scripted")
			}

			validatePause(st.Pause, path+".pause", result)
			validateGuard(st.When, path+".when", guards, result)

			validateTemplate(st.Content, path+".content", afterGate, templates, result)
			if st.Context != nil {
				validateTemplate(st.Context.Content, path+".context.content", afterGate, templates, result)
				if (st.Context.Agent == schema.AgentUser) != (st.Context.Role == schema.RoleReferee) {
					result.AddError(path+".context", schema.ErrCodeValidation,
						"only the user may hold the referee role")
				}
			}
			if st.Disagreement == nil && st.Content == "" {
				result.AddWarning(path+".content", schema.ErrCodeValidation, "step has no content")
			}
		}
	}

	if gates == 0 {
		result.AddError("phases", schema.ErrCodeValidation, "script must contain exactly one disagreement step")
	}
	return result
}

func validatePause(pause, path string, result *schema.ValidationResult) {
	if pause == "" {
		return
	}
	d, err := time.ParseDuration(pause)
	if err != nil {
		result.AddError(path, schema.ErrCodeValidation, fmt.Sprintf("invalid pause %q: %s", pause, err))
		return
	}
	if d > maxPause {
		result.AddWarning(path, schema.ErrCodeValidation, fmt.Sprintf("pause %s exceeds %s", d, maxPause))
	}
}

func validateGuard(when, path string, guards ExpressionChecker, result *schema.ValidationResult) {
	if when == "" || guards == nil {
		return
	}
	if err := guards.Check(when); err != nil {
		result.AddError(path, schema.ErrCodeValidation, err.Error())
	}
}

func validateTemplate(tmpl, path string, afterGate bool, templates ExpressionChecker, result *schema.ValidationResult) {
	if strings.Count(tmpl, "${{") != len(expressions.References(tmpl)) {
		result.AddError(path, schema.ErrCodeInterpolation, "unclosed ${{ expression")
		return
	}
	for _, ref := range expressions.References(tmpl) {
		if ref == "" {
			result.AddError(path, schema.ErrCodeInterpolation, "empty variable reference")
			continue
		}
		if !afterGate && strings.Contains(ref, expressions.NSDecision+".") {
			result.AddError(path, schema.ErrCodeValidation,
				fmt.Sprintf("${{%s}} references the decision before the gate", ref))
		}
		if templates != nil {
			if err := templates.Check(ref); err != nil {
				result.AddError(path, schema.ErrCodeInterpolation, err.Error())
			}
		}
	}
}
