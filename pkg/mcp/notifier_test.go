package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/conclave/internal/logging"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

func TestMCPNotifier_NoSession(t *testing.T) {
	s := NewConclaveServer(ConclaveServerDeps{Logger: logging.Discard()})

	err := s.notifier.Notify(context.Background(), "run-1", map[string]any{"x": 1})
	assert.NoError(t, err)
}

func TestMCPNotifier_StaleSessionRemoved(t *testing.T) {
	s := NewConclaveServer(ConclaveServerDeps{Logger: logging.Discard()})
	s.Sessions().Register("run-1", "gone")

	err := s.notifier.Notify(context.Background(), "run-1", map[string]any{"x": 1})
	assert.NoError(t, err)

	_, ok := s.Sessions().SessionFor("run-1")
	assert.False(t, ok)
}

func TestMCPNotifier_ForwardForgetsFinishedRuns(t *testing.T) {
	hub := streaming.NewMemoryHub()
	s := NewConclaveServer(ConclaveServerDeps{Hub: hub, Logger: logging.Discard()})

	// No live session exists behind this ID, so each notify drops it;
	// re-register before the terminal event to observe Forget.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.notifier.Forward(ctx, hub) }()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, time.Millisecond)

	s.Sessions().Register("run-1", "gone")
	require.NoError(t, hub.Publish(ctx, streaming.StreamEvent{RunID: "run-1", EventType: schema.EventRunStarted}))
	require.Eventually(t, func() bool {
		_, ok := s.Sessions().SessionFor("run-1")
		return !ok
	}, time.Second, time.Millisecond)

	s.Sessions().Register("run-2", "other")
	require.NoError(t, hub.Publish(ctx, streaming.StreamEvent{RunID: "run-2", EventType: schema.EventRunCompleted}))
	require.Eventually(t, func() bool {
		_, ok := s.Sessions().SessionFor("run-2")
		return !ok
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after cancel")
	}
}
