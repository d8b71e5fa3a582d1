package validation

import (
	"github.com/rendis/conclave/internal/expressions"
	"github.com/rendis/conclave/pkg/schema"
)

// ScriptValidator runs the two-stage pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (gate count, pauses, guards, placeholders)
type ScriptValidator struct {
	jsonSchema *JSONSchemaValidator
	guards     *expressions.CELEngine
	templates  *expressions.ExprEngine
}

// NewScriptValidator creates a ScriptValidator.
func NewScriptValidator() (*ScriptValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &ScriptValidator{
		jsonSchema: jsv,
		guards:     cel,
		templates:  expressions.NewExprEngine(),
	}, nil
}

// Validate runs the pipeline. Structural errors skip the semantic stage.
func (sv *ScriptValidator) Validate(s *schema.Script) *schema.ValidationResult {
	if s == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "script is nil")
		return r
	}

	result := validateStructural(sv.jsonSchema, s)
	result.Script = s.Name
	if !result.Valid() {
		return result
	}
	result.Merge(validateSemantic(s, sv.guards, sv.templates))
	return result
}

// ValidateScript satisfies Validator.
func (sv *ScriptValidator) ValidateScript(s *schema.Script) error {
	return sv.Validate(s).ToError()
}

func validateStructural(v *JSONSchemaValidator, s *schema.Script) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateScript(s)
	if err == nil {
		return result
	}
	ce, ok := err.(*schema.ConclaveError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	if violations, ok := ce.Details["violations"].([]string); ok {
		for _, msg := range violations {
			result.AddError("/", schema.ErrCodeValidation, msg)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, ce.Message)
	return result
}

var _ Validator = (*ScriptValidator)(nil)
