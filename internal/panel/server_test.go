package panel

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/conclave/internal/engine"
	"github.com/rendis/conclave/internal/logging"
	"github.com/rendis/conclave/internal/script"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

type testEnv struct {
	seq *engine.Sequencer
	hub *streaming.MemoryHub
	srv *PanelServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hub := streaming.NewMemoryHubWithBuffer(256)
	seq, err := engine.NewSequencer(script.MustDefault(), engine.Config{Hub: hub, Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = seq.Close() })

	srv := NewPanelServer(PanelDeps{Runner: seq, Hub: hub, Logger: logging.Discard()})
	return &testEnv{seq: seq, hub: hub, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) waitForGate(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.seq.Snapshot().Status == schema.RunStatusAwaitingDecision
	}, 2*time.Second, time.Millisecond)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// --- Pages ---

func TestIndex_RendersIdle(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Collaborative AI Team")
	assert.Contains(t, rec.Body.String(), `id="task-form"`)
}

func TestIndex_RendersGate(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.seq.Start(context.Background(), "Build a login page")
	require.NoError(t, err)
	env.waitForGate(t)

	body := env.do(t, http.MethodGet, "/", "").Body.String()
	assert.Contains(t, body, "Your call: Architecture Approach")
	assert.Contains(t, body, "Event-Driven Real-Time First")
	assert.Contains(t, body, `data-choice="1"`)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/static/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

// --- API ---

func TestStartRun(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/runs", `{"task":"Build a login page"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	runID := decodeBody(t, rec)["run_id"]
	assert.NotEmpty(t, runID)

	rec = env.do(t, http.MethodPost, "/api/runs", `{"task":"Another"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, schema.ErrCodeConflict, decodeBody(t, rec)["code"])
	assert.Equal(t, runID, env.seq.Snapshot().RunID)
}

func TestStartRun_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty task", `{"task":""}`},
		{"blank task", `{"task":"   "}`},
		{"invalid json", `{"task":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.False(t, env.seq.Snapshot().IsRunning)
}

func TestChoose(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/decision", `{"choice":0}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, schema.ErrCodeNoPendingDecision, decodeBody(t, rec)["code"])

	_, err := env.seq.Start(context.Background(), "Build a login page")
	require.NoError(t, err)
	env.waitForGate(t)

	rec = env.do(t, http.MethodPost, "/api/decision", `{"choice":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/decision", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/decision", `{"choice":"grok"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["choice"])

	rec = env.do(t, http.MethodPost, "/api/decision", `{"choice":0}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, schema.ErrCodeDecisionClosed, decodeBody(t, rec)["code"])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.seq.Wait(ctx))
	assert.Equal(t, 1, *env.seq.Snapshot().Choice)
}

func TestChoose_StringIndex(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.seq.Start(context.Background(), "Strings")
	require.NoError(t, err)
	env.waitForGate(t)

	rec := env.do(t, http.MethodPost, "/api/decision", `{"choice":"0"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestState(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.seq.Start(context.Background(), "Query task")
	require.NoError(t, err)
	env.waitForGate(t)

	rec := env.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state schema.RunState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "Query task", state.Task)
	assert.Equal(t, schema.RunStatusAwaitingDecision, state.Status)
	require.NotNil(t, state.PendingDecision)

	rec = env.do(t, http.MethodGet, "/api/state?q=.task", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"Query task"`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/state?q=.steps[", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScript(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/script", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "collaborative-team", decodeBody(t, rec)["name"])
}

func TestCORS(t *testing.T) {
	hub := streaming.NewMemoryHub()
	seq, err := engine.NewSequencer(script.MustDefault(), engine.Config{Hub: hub, Logger: logging.Discard()})
	require.NoError(t, err)
	defer seq.Close()
	srv := NewPanelServer(PanelDeps{Runner: seq, Hub: hub, Logger: logging.Discard(), AllowedOrigins: []string{"http://ok.test"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/runs", nil)
	req.Header.Set("Origin", "http://ok.test")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://ok.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// --- Streams ---

func TestSSE_StreamsEvents(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, time.Second, time.Millisecond)
	_, err = env.seq.Start(context.Background(), "Streamed")
	require.NoError(t, err)

	sc := bufio.NewScanner(resp.Body)
	var first string
	for sc.Scan() {
		if line, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			first = line
			break
		}
	}
	assert.Equal(t, schema.EventRunStarted, first)
}

func TestWebSocket_PingAndEvents(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"start","task":"Over the wire"}`)))

	sawAck, sawStart := false, false
	for !(sawAck && sawStart) {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == "ack" {
			sawAck = true
		}
		if msg["event_type"] == schema.EventRunStarted {
			sawStart = true
		}
	}
	assert.Equal(t, "Over the wire", env.seq.Snapshot().Task)
}
