package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/conclave/pkg/schema"
)

// callTool invokes a tool through the MCP server's HandleMessage (full JSON-RPC round-trip).
func callTool(t *testing.T, s *ConclaveServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	mcpSrv := s.MCPServer()

	rawInit, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      0,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "conclave-test", "version": "1.0.0"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, mcpSrv.HandleMessage(ctx, rawInit))

	rawReq, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": toolName, "arguments": args},
	})
	require.NoError(t, err)

	resp := mcpSrv.HandleMessage(ctx, rawReq)
	require.NotNil(t, resp)

	respBytes, err := json.Marshal(resp)
	require.NoError(t, err)

	var rpcResp struct {
		Result *mcp.CallToolResult `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))
	if rpcResp.Error != nil {
		t.Fatalf("JSON-RPC error: code=%d, msg=%s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	require.NotNil(t, rpcResp.Result)
	return rpcResp.Result
}

func TestE2E_FullRun(t *testing.T) {
	s, seq := newTestServer(t)

	result := callTool(t, s, "conclave.start", map[string]any{"task": "Build a login page"})
	require.False(t, result.IsError, extractText(t, result))

	waitForGate(t, seq)

	result = callTool(t, s, "conclave.state", map[string]any{"query": "[.steps[] | select(.type == \"user_input_needed\")] | length"})
	require.False(t, result.IsError, extractText(t, result))
	var count map[string]any
	unmarshalResult(t, result, &count)
	assert.Equal(t, float64(1), count["result"])

	result = callTool(t, s, "conclave.choose", map[string]any{"choice": "grok"})
	require.False(t, result.IsError, extractText(t, result))

	final := waitDone(t, seq)
	assert.Equal(t, schema.RunStatusCompleted, final.Status)

	result = callTool(t, s, "conclave.state", map[string]any{})
	require.False(t, result.IsError)
	var state schema.RunState
	unmarshalResult(t, result, &state)
	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	assert.False(t, state.IsRunning)
	assert.Empty(t, state.CurrentPhase)
	require.NotNil(t, state.Choice)
	assert.Equal(t, 1, *state.Choice)

	last, ok := state.LastStep()
	require.True(t, ok)
	assert.Equal(t, schema.StepTypeTeamResult, last.Type)
	assert.Contains(t, last.Content, "Build a login page")
}

func TestE2E_ChooseBeforeGate(t *testing.T) {
	s, _ := newTestServer(t)

	result := callTool(t, s, "conclave.choose", map[string]any{"choice": "1"})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeNoPendingDecision)
}
