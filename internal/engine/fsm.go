package engine

import (
	"context"
	"slices"
	"sync"

	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

// TransitionHook is called before or after a state transition.
type TransitionHook func(from, to string) error

// EventPublisher receives the change notification emitted on every transition.
// Satisfied by streaming.EventHub.
type EventPublisher interface {
	Publish(ctx context.Context, event streaming.StreamEvent) error
}

type runHookKey struct {
	from, to schema.RunStatus
}

// RunFSM manages run lifecycle state transitions.
type RunFSM struct {
	mu        sync.Mutex
	publisher EventPublisher
	before    map[runHookKey][]TransitionHook
	after     map[runHookKey][]TransitionHook
}

// NewRunFSM creates a RunFSM that emits events via publisher. A nil
// publisher disables emission.
func NewRunFSM(publisher EventPublisher) *RunFSM {
	return &RunFSM{
		publisher: publisher,
		before:    make(map[runHookKey][]TransitionHook),
		after:     make(map[runHookKey][]TransitionHook),
	}
}

// OnBefore registers a hook called before a run transition. A hook error
// aborts the transition.
func (f *RunFSM) OnBefore(from, to schema.RunStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := runHookKey{from, to}
	f.before[key] = append(f.before[key], hook)
}

// OnAfter registers a hook called after a run transition.
func (f *RunFSM) OnAfter(from, to schema.RunStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := runHookKey{from, to}
	f.after[key] = append(f.after[key], hook)
}

// Transition validates and executes a run state transition, emitting the
// matching event with payload attached. The caller owns the stored status.
func (f *RunFSM) Transition(ctx context.Context, runID string, from, to schema.RunStatus, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !IsValidRunTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid run transition: %s -> %s", from, to).
			WithDetails(map[string]any{"run_id": runID, "from": string(from), "to": string(to)})
	}

	key := runHookKey{from, to}
	for _, hook := range f.before[key] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}

	if eventType := runEventType(from, to); eventType != "" && f.publisher != nil {
		event := streaming.StreamEvent{RunID: runID, EventType: eventType, Payload: payload}
		if err := f.publisher.Publish(ctx, event); err != nil {
			return schema.NewErrorf(schema.ErrCodeExecution, "emit run event: %s", err.Error()).WithCause(err)
		}
	}

	for _, hook := range f.after[key] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}
	return nil
}

// IsValidRunTransition reports whether the transition table allows from -> to.
func IsValidRunTransition(from, to schema.RunStatus) bool {
	return slices.Contains(ValidRunTransitions[from], to)
}

func runEventType(from, to schema.RunStatus) string {
	switch to {
	case schema.RunStatusRunning:
		if from == schema.RunStatusAwaitingDecision {
			return schema.EventDecisionResolved
		}
		return schema.EventRunStarted
	case schema.RunStatusAwaitingDecision:
		return schema.EventDecisionRequested
	case schema.RunStatusCompleted:
		return schema.EventRunCompleted
	case schema.RunStatusFailed:
		return schema.EventRunFailed
	default:
		return ""
	}
}

// ValidRunTransitions defines the allowed run lifecycle transitions.
// Terminal states have none: a new run starts from a fresh idle state.
var ValidRunTransitions = map[schema.RunStatus][]schema.RunStatus{
	schema.RunStatusIdle:             {schema.RunStatusRunning},
	schema.RunStatusRunning:          {schema.RunStatusAwaitingDecision, schema.RunStatusCompleted, schema.RunStatusFailed},
	schema.RunStatusAwaitingDecision: {schema.RunStatusRunning, schema.RunStatusFailed},
	schema.RunStatusCompleted:        {},
	schema.RunStatusFailed:           {},
}
