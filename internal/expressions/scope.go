package expressions

import (
	"maps"
	"strings"

	"github.com/rendis/conclave/pkg/schema"
)

// Scope namespaces visible to templates and guards.
const (
	NSTask     = "task"
	NSRun      = "run"
	NSContext  = "context"
	NSDecision = "decision"
)

var namespaces = []string{NSTask, NSRun, NSContext, NSDecision}

// Scope is the data a step template is rendered against. It is rebuilt from
// a run snapshot before every step, so it never aliases live run state.
type Scope struct {
	Task     string
	Run      map[string]any
	Context  map[string]any
	Decision map[string]any
}

// NewScope derives a Scope from a run snapshot. The decision namespace stays
// empty until the run's gate has been resolved.
func NewScope(state schema.RunState) Scope {
	s := Scope{
		Task: state.Task,
		Run: map[string]any{
			"id":     state.RunID,
			"status": string(state.Status),
			"phase":  state.CurrentPhase,
			"steps":  len(state.Steps),
		},
		Context: map[string]any{
			"exchanges": state.Exchanges(),
			"total":     len(state.Context),
		},
		Decision: map[string]any{},
	}

	d := state.Disagreement()
	if d == nil || state.Choice == nil {
		return s
	}
	idx := *state.Choice
	if idx < 0 || idx >= len(d.Options) {
		return s
	}
	opt := d.Options[idx]
	s.Decision = map[string]any{
		"index":     idx,
		"topic":     d.Topic,
		"agent":     string(opt.Agent),
		"position":  opt.Position,
		"reasoning": opt.Reasoning,
	}
	return s
}

// Data returns the scope as a fresh map suitable for an expression engine.
func (s Scope) Data() map[string]any {
	return map[string]any{
		NSTask:     s.Task,
		NSRun:      maps.Clone(s.Run),
		NSContext:  maps.Clone(s.Context),
		NSDecision: maps.Clone(s.Decision),
	}
}

// isPath reports whether expr is a plain dotted identifier path rooted in a
// known namespace, e.g. "decision.position".
func isPath(expr string) bool {
	root, _, _ := strings.Cut(expr, ".")
	known := false
	for _, ns := range namespaces {
		if root == ns {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	for _, seg := range strings.Split(expr, ".") {
		if seg == "" {
			return false
		}
		for _, r := range seg {
			if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
				return false
			}
		}
	}
	return true
}
