package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/conclave/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const scriptSchemaURL = "https://conclave.dev/schemas/script.json"

// scriptSchemaJSON is the JSON Schema (draft 2020-12) for Script documents.
const scriptSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://conclave.dev/schemas/script.json",
  "type": "object",
  "required": ["name", "phases"],
  "properties": {
    "name": { "type": "string", "minLength": 1 },
    "version": { "type": "string" },
    "failure_message": { "type": "string" },
    "metadata": { "type": "object" },
    "phases": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/phase" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "phase": {
      "type": "object",
      "required": ["id", "label", "steps"],
      "properties": {
        "id": { "type": "string", "pattern": "^[a-z][a-z0-9_-]*$" },
        "label": { "type": "string", "minLength": 1 },
        "steps": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/step" }
        }
      },
      "additionalProperties": false
    },
    "step": {
      "type": "object",
      "required": ["phase"],
      "properties": {
        "phase": {
          "enum": ["init", "roles", "work", "debate", "disagreement", "user_decision", "synthesis", "final", "error"]
        },
        "type": {
          "enum": ["group_chat", "consensus", "user_input_needed", "user_referee", "team_alignment", "team_result", "error"]
        },
        "agent": { "$ref": "#/$defs/agent" },
        "role": { "$ref": "#/$defs/role" },
        "action": { "type": "string" },
        "content": { "type": "string" },
        "when": { "type": "string" },
        "pause": {
          "type": "string",
          "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
        },
        "context": { "$ref": "#/$defs/context" },
        "disagreement": { "$ref": "#/$defs/disagreement" }
      },
      "additionalProperties": false
    },
    "context": {
      "type": "object",
      "required": ["agent", "role", "content"],
      "properties": {
        "agent": { "enum": ["claude", "gemini", "grok", "user"] },
        "role": { "enum": ["coordinator", "programmer", "researcher", "analyst", "presenter", "critic", "synthesizer", "candidate", "referee"] },
        "content": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    },
    "disagreement": {
      "type": "object",
      "required": ["topic", "options"],
      "properties": {
        "topic": { "type": "string", "minLength": 1 },
        "options": {
          "type": "array",
          "minItems": 2,
          "maxItems": 2,
          "items": {
            "type": "object",
            "required": ["agent", "position", "reasoning"],
            "properties": {
              "agent": { "$ref": "#/$defs/agent" },
              "position": { "type": "string", "minLength": 1 },
              "reasoning": { "type": "string", "minLength": 1 }
            },
            "additionalProperties": false
          }
        }
      },
      "additionalProperties": false
    },
    "agent": { "enum": ["claude", "gemini", "grok"] },
    "role": { "enum": ["coordinator", "programmer", "researcher", "analyst", "presenter", "critic", "synthesizer", "candidate"] }
  }
}`

// JSONSchemaValidator validates scripts against the embedded script schema
// and arbitrary documents (API request bodies) against caller-supplied schemas.
type JSONSchemaValidator struct {
	scriptSchema *jsonschema.Schema

	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the script schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(scriptSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal script schema: %w", err)
	}
	if err := c.AddResource(scriptSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add script schema resource: %w", err)
	}
	compiled, err := c.Compile(scriptSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile script schema: %w", err)
	}

	return &JSONSchemaValidator{
		scriptSchema: compiled,
		cache:        make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateScript checks the structure of s against the script schema.
func (v *JSONSchemaValidator) ValidateScript(s *schema.Script) error {
	if s == nil {
		return schema.NewError(schema.ErrCodeValidation, "script is nil")
	}
	doc, err := toJSONValue(s)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize script").WithCause(err)
	}
	if err := v.scriptSchema.Validate(doc); err != nil {
		return toConclaveError(err)
	}
	return nil
}

// ValidateDocument validates v against a JSON Schema given as raw bytes.
// Compiled schemas are cached by content.
func (v *JSONSchemaValidator) ValidateDocument(doc any, schemaBytes []byte) error {
	if len(schemaBytes) == 0 {
		return nil
	}
	compiled, err := v.compile(schemaBytes)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid document schema").WithCause(err)
	}
	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize document").WithCause(err)
	}
	if err := compiled.Validate(val); err != nil {
		return toConclaveError(err)
	}
	return nil
}

func (v *JSONSchemaValidator) compile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	cached, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := fmt.Sprintf("conclave://document-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips v through encoding/json so numbers become
// json.Number, which the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toConclaveError flattens a jsonschema.ValidationError into a ConclaveError
// listing every leaf violation with its instance location.
func toConclaveError(err error) *schema.ConclaveError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	switch len(violations) {
	case 0:
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	case 1:
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(violations)).
			WithDetails(map[string]any{"violations": violations})
	}
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
