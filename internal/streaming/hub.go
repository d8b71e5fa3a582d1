package streaming

import "context"

// StreamEvent is a change notification emitted while a run progresses.
type StreamEvent struct {
	Seq       uint64 `json:"seq"`
	RunID     string `json:"run_id"`
	StepID    string `json:"step_id,omitempty"`
	EventType string `json:"event_type"`
	Payload   any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	RunID      string   `json:"run_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for run change notifications.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
