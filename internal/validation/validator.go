package validation

import "github.com/rendis/conclave/pkg/schema"

// Validator checks scripts before the sequencer is allowed to run them.
type Validator interface {
	ValidateScript(s *schema.Script) error
}
