package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

// RunNotifier pushes run events to connected clients.
type RunNotifier interface {
	Notify(ctx context.Context, runID string, payload map[string]any) error
}

// MCPNotifier implements RunNotifier using MCP server notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
	logger    *slog.Logger
}

// NewMCPNotifier creates a notifier that pushes to the session watching a run.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry, logger *slog.Logger) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions, logger: logger}
}

// Notify sends a notification to the session watching runID.
// Best-effort: returns nil if no session is watching.
func (n *MCPNotifier) Notify(_ context.Context, runID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(runID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session went away between lookup and send.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}

// Forward relays hub events to watching sessions until ctx is done.
func (n *MCPNotifier) Forward(ctx context.Context, hub streaming.EventHub) error {
	events, unsubscribe, err := hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return err
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			payload := map[string]any{
				"level":  "info",
				"logger": "conclave",
				"data": map[string]any{
					"seq":        ev.Seq,
					"run_id":     ev.RunID,
					"step_id":    ev.StepID,
					"event_type": ev.EventType,
					"payload":    ev.Payload,
				},
			}
			if err := n.Notify(ctx, ev.RunID, payload); err != nil {
				n.logger.Warn("mcp notification failed", "run_id", ev.RunID, "event_type", ev.EventType, "error", err)
			}
			if ev.EventType == schema.EventRunCompleted || ev.EventType == schema.EventRunFailed {
				n.sessions.Forget(ev.RunID)
			}
		}
	}
}
