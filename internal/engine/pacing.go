package engine

import (
	"context"
	"time"

	"github.com/rendis/conclave/pkg/schema"
)

// Pacer scales the simulated thinking delays of a script. A zero
// multiplier disables pauses entirely.
type Pacer struct {
	Multiplier float64
}

// Scale applies the multiplier to d.
func (p Pacer) Scale(d time.Duration) time.Duration {
	if p.Multiplier <= 0 || d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * p.Multiplier)
}

// Pause sleeps for the scaled duration or returns early when ctx ends.
func (p Pacer) Pause(ctx context.Context, d time.Duration) error {
	delay := p.Scale(d)
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParsePause parses a step template pause. Empty means no pause.
func ParsePause(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "invalid pause %q", s).WithCause(err)
	}
	return d, nil
}
