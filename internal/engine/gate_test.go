package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/conclave/pkg/schema"
)

func twoOptions() *schema.DisagreementData {
	return &schema.DisagreementData{
		Topic: "Approach",
		Options: []schema.DecisionOption{
			{Agent: schema.AgentClaude, Position: "A", Reasoning: "a"},
			{Agent: schema.AgentGrok, Position: "B", Reasoning: "b"},
		},
	}
}

func TestGate_ResolveOnce(t *testing.T) {
	g := newGate(7, twoOptions())
	assert.Equal(t, 7, g.StepIndex())

	_, ok := g.Resolved()
	assert.False(t, ok)

	require.NoError(t, g.Resolve(1))
	err := g.Resolve(0)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeDecisionClosed))

	choice, ok := g.Resolved()
	assert.True(t, ok)
	assert.Equal(t, 1, choice)

	got, err := g.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestGate_OutOfRangeKeepsGateOpen(t *testing.T) {
	g := newGate(0, twoOptions())

	for _, bad := range []int{-1, 2, 99} {
		err := g.Resolve(bad)
		require.Error(t, err)
		assert.True(t, schema.HasCode(err, schema.ErrCodeValidation), "choice %d", bad)
	}
	_, ok := g.Resolved()
	assert.False(t, ok)

	require.NoError(t, g.Resolve(0))
}

func TestGate_WaitCancelled(t *testing.T) {
	g := newGate(0, twoOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Wait(ctx)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeCancelled))
}

func TestGate_WaitBlocksUntilResolved(t *testing.T) {
	g := newGate(0, twoOptions())
	result := make(chan int, 1)
	go func() {
		c, _ := g.Wait(context.Background())
		result <- c
	}()

	select {
	case <-result:
		t.Fatal("wait returned before resolve")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, g.Resolve(0))
	select {
	case c := <-result:
		assert.Equal(t, 0, c)
	case <-time.After(time.Second):
		t.Fatal("wait did not return")
	}
}

func TestGate_ConcurrentResolve(t *testing.T) {
	g := newGate(0, twoOptions())
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Resolve(i%2) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
