package engine

import (
	"context"
	"sync"

	"github.com/rendis/conclave/internal/decision"
	"github.com/rendis/conclave/pkg/schema"
)

// Gate is the one-shot suspension point of a run. The driver blocks in Wait
// until exactly one valid Resolve call arrives.
type Gate struct {
	stepIndex int
	data      *schema.DisagreementData

	mu       sync.Mutex
	resolved bool
	choice   int
	ch       chan int
}

func newGate(stepIndex int, data *schema.DisagreementData) *Gate {
	return &Gate{stepIndex: stepIndex, data: data, choice: -1, ch: make(chan int, 1)}
}

// StepIndex is the position of the user_input_needed step in the step log.
func (g *Gate) StepIndex() int { return g.stepIndex }

// Resolve records choice. An out-of-range choice leaves the gate open; any
// call after a successful one fails with DECISION_CLOSED.
func (g *Gate) Resolve(choice int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.resolved {
		return schema.NewErrorf(schema.ErrCodeDecisionClosed,
			"decision already resolved with option %d", g.choice).
			WithDetails(map[string]any{"choice": g.choice})
	}
	if err := decision.ValidateChoice(g.data, choice); err != nil {
		return err
	}
	g.resolved = true
	g.choice = choice
	g.ch <- choice
	return nil
}

// Resolved reports whether the gate has accepted its choice.
func (g *Gate) Resolved() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.choice, g.resolved
}

// Wait blocks until the gate is resolved or ctx ends.
func (g *Gate) Wait(ctx context.Context) (int, error) {
	select {
	case c := <-g.ch:
		return c, nil
	case <-ctx.Done():
		return -1, schema.NewError(schema.ErrCodeCancelled, "decision wait cancelled").WithCause(ctx.Err())
	}
}
