package expressions

import "context"

// Engine evaluates one expression language against a data map.
// Three implementations: Expr (template logic), CEL (guards), GoJQ (snapshot queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
