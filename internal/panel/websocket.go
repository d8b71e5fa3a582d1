package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/rendis/conclave/internal/streaming"
)

const wsWriteTimeout = 5 * time.Second

// wsMessage is a client command sent over the socket.
type wsMessage struct {
	Type   string `json:"type"`
	Task   string `json:"task,omitempty"`
	Choice *int   `json:"choice,omitempty"`
}

// handleWebSocket streams hub events as JSON text frames. Clients may also
// send {"type":"start","task":...}, {"type":"choose","choice":n} or
// {"type":"ping"}; replies carry "type":"ack", "error" or "pong".
func (s *PanelServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !originAllowed(s.deps.AllowedOrigins, r.Header.Get("Origin")) {
		s.deps.Logger.Warn("WebSocket origin rejected", "origin", r.Header.Get("Origin"))
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.deps.Logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			s.deps.Logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch, unsubscribe, err := s.deps.Hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		s.deps.Logger.Error("WebSocket subscribe failed", "error", err)
		return
	}
	defer unsubscribe()

	replies := make(chan any, 8)
	go func() {
		defer cancel()
		s.wsReadLoop(ctx, ws, replies)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := writeWS(ctx, ws, event); err != nil {
				s.deps.Logger.Debug("WebSocket write error", "error", err)
				return
			}
		case reply := <-replies:
			if err := writeWS(ctx, ws, reply); err != nil {
				s.deps.Logger.Debug("WebSocket write error", "error", err)
				return
			}
		}
	}
}

func (s *PanelServer) wsReadLoop(ctx context.Context, ws *websocket.Conn, replies chan<- any) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.deps.Logger.Debug("WebSocket read error", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendReply(ctx, replies, map[string]string{"type": "error", "error": "invalid JSON"})
			continue
		}
		sendReply(ctx, replies, s.dispatchWS(ctx, msg))
	}
}

func (s *PanelServer) dispatchWS(ctx context.Context, msg wsMessage) map[string]any {
	switch msg.Type {
	case "ping":
		return map[string]any{"type": "pong"}
	case "start":
		runID, err := s.deps.Runner.Start(ctx, msg.Task)
		if err != nil {
			return map[string]any{"type": "error", "error": err.Error()}
		}
		return map[string]any{"type": "ack", "run_id": runID}
	case "choose":
		if msg.Choice == nil {
			return map[string]any{"type": "error", "error": "choice is required"}
		}
		if err := s.deps.Runner.Choose(ctx, *msg.Choice); err != nil {
			return map[string]any{"type": "error", "error": err.Error()}
		}
		return map[string]any{"type": "ack", "choice": *msg.Choice}
	case "state":
		return map[string]any{"type": "state", "state": s.deps.Runner.Snapshot()}
	default:
		return map[string]any{"type": "error", "error": "unknown message type " + msg.Type}
	}
}

func sendReply(ctx context.Context, replies chan<- any, v any) {
	select {
	case replies <- v:
	case <-ctx.Done():
	}
}

func writeWS(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(wctx, websocket.MessageText, data)
}
