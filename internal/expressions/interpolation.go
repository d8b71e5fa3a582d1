package expressions

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rendis/conclave/pkg/schema"
)

// Interpolator renders ${{...}} placeholders in step templates.
// Plain paths such as ${{ task }} or ${{ decision.position }} are looked up
// directly; anything else is handed to the expr engine.
type Interpolator struct {
	engine Engine
}

// NewInterpolator creates an Interpolator. A nil engine defaults to ExprEngine.
func NewInterpolator(engine Engine) *Interpolator {
	if engine == nil {
		engine = NewExprEngine()
	}
	return &Interpolator{engine: engine}
}

// Render replaces every placeholder in tmpl with its value in scope.
func (interp *Interpolator) Render(ctx context.Context, tmpl string, scope Scope) (string, error) {
	if !HasInterpolation(tmpl) {
		return tmpl, nil
	}

	data := scope.Data()
	var out strings.Builder
	out.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		idx := strings.Index(tmpl[i:], "${{")
		if idx == -1 {
			out.WriteString(tmpl[i:])
			break
		}
		out.WriteString(tmpl[i : i+idx])
		start := i + idx + 3

		end := strings.Index(tmpl[start:], "}}")
		if end == -1 {
			return "", schema.NewError(schema.ErrCodeInterpolation, "unclosed ${{ expression")
		}
		end += start

		expr := strings.TrimSpace(tmpl[start:end])
		if strings.Contains(expr, "${{") {
			return "", schema.NewError(schema.ErrCodeInterpolation,
				"nested interpolation not allowed: ${{...}} cannot contain ${{")
		}
		if expr == "" {
			return "", schema.NewError(schema.ErrCodeInterpolation, "empty variable reference: ${{  }}")
		}

		val, err := interp.resolve(ctx, expr, data)
		if err != nil {
			return "", err
		}
		out.WriteString(stringify(val))
		i = end + 2
	}
	return out.String(), nil
}

func (interp *Interpolator) resolve(ctx context.Context, expr string, data map[string]any) (any, error) {
	if isPath(expr) {
		return traversePath(data, expr)
	}
	val, err := interp.engine.Evaluate(ctx, expr, data)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"cannot evaluate ${{%s}}: %s", expr, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expr})
	}
	return val, nil
}

// traversePath walks a dot-delimited path through nested maps.
func traversePath(root map[string]any, expr string) (any, error) {
	var current any = root
	for _, seg := range strings.Split(expr, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"cannot traverse into non-object at %q in %q (type: %T)", seg, expr, current).
				WithDetails(map[string]any{"expression": expr})
		}
		val, ok := m[seg]
		if !ok {
			keys := mapKeys(m)
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"field %q not found in %q; available: [%s]", seg, expr, strings.Join(keys, ", ")).
				WithDetails(map[string]any{"expression": expr, "available_fields": keys})
		}
		current = val
	}
	return current, nil
}

// stringify renders a resolved value for inline embedding in text.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// HasInterpolation reports whether s contains any ${{...}} reference.
func HasInterpolation(s string) bool {
	return strings.Contains(s, "${{")
}

// References returns the trimmed expressions of every well-formed
// placeholder in s, in order of appearance.
func References(s string) []string {
	var refs []string
	for {
		idx := strings.Index(s, "${{")
		if idx == -1 {
			return refs
		}
		rest := s[idx+3:]
		end := strings.Index(rest, "}}")
		if end == -1 {
			return refs
		}
		refs = append(refs, strings.TrimSpace(rest[:end]))
		s = rest[end+2:]
	}
}
