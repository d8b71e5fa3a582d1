package decision

import (
	"strconv"
	"strings"

	"github.com/rendis/conclave/pkg/schema"
)

// ValidateChoice checks that choice indexes one of d's options.
func ValidateChoice(d *schema.DisagreementData, choice int) error {
	if d == nil {
		return schema.NewError(schema.ErrCodeNoPendingDecision, "no decision is pending")
	}
	if choice < 0 || choice >= len(d.Options) {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"invalid choice %d: must be between 0 and %d", choice, len(d.Options)-1).
			WithDetails(map[string]any{"choice": choice, "options": len(d.Options)})
	}
	return nil
}

// ParseChoice resolves user input to an option index. It accepts a
// zero-based index, the option's agent name, or its position text
// (case-insensitive).
func ParseChoice(d *schema.DisagreementData, input string) (int, error) {
	if d == nil {
		return -1, schema.NewError(schema.ErrCodeNoPendingDecision, "no decision is pending")
	}
	in := strings.TrimSpace(input)
	if n, err := strconv.Atoi(in); err == nil {
		return n, ValidateChoice(d, n)
	}
	for i, opt := range d.Options {
		if strings.EqualFold(in, string(opt.Agent)) || strings.EqualFold(in, opt.Position) {
			return i, nil
		}
	}
	return -1, schema.NewErrorf(schema.ErrCodeValidation, "invalid choice %q: not in available options", input)
}
