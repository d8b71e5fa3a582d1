package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/conclave/pkg/schema"
)

func TestPacer_Scale(t *testing.T) {
	tests := []struct {
		name string
		mult float64
		in   time.Duration
		want time.Duration
	}{
		{"disabled", 0, time.Second, 0},
		{"negative", -1, time.Second, 0},
		{"identity", 1, 800 * time.Millisecond, 800 * time.Millisecond},
		{"half", 0.5, time.Second, 500 * time.Millisecond},
		{"double", 2, 600 * time.Millisecond, 1200 * time.Millisecond},
		{"zero delay", 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pacer{Multiplier: tt.mult}.Scale(tt.in))
		})
	}
}

func TestPacer_PauseDisabled(t *testing.T) {
	start := time.Now()
	require.NoError(t, Pacer{}.Pause(context.Background(), time.Hour))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacer_PauseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Pacer{Multiplier: 1}.Pause(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPacer_PauseSleeps(t *testing.T) {
	start := time.Now()
	require.NoError(t, Pacer{Multiplier: 1}.Pause(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestParsePause(t *testing.T) {
	d, err := ParsePause("800ms")
	require.NoError(t, err)
	assert.Equal(t, 800*time.Millisecond, d)

	d, err = ParsePause("")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParsePause("soon")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}
