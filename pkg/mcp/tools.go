package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/conclave/internal/decision"
	"github.com/rendis/conclave/internal/diagram"
	"github.com/rendis/conclave/pkg/schema"
)

// handleStart submits a task and returns the new run ID.
func (s *ConclaveServer) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := req.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError("task is required"), nil
	}

	runID, err := s.runner.Start(ctx, task)
	if err != nil {
		return toolError("start failed", err), nil
	}

	s.captureSession(ctx, runID)

	return marshalResult(map[string]any{
		"run_id": runID,
		"status": s.runner.Snapshot().Status,
	})
}

// handleChoose resolves the open decision gate.
func (s *ConclaveServer) handleChoose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["choice"]
	if !ok || raw == nil {
		return mcp.NewToolResultError("choice is required"), nil
	}

	choice, err := s.parseChoice(raw)
	if err != nil {
		return toolError("invalid choice", err), nil
	}

	if err := s.runner.Choose(ctx, choice); err != nil {
		return toolError("choose failed", err), nil
	}

	snap := s.runner.Snapshot()
	s.captureSession(ctx, snap.RunID)

	return marshalResult(map[string]any{
		"ok":     true,
		"run_id": snap.RunID,
		"choice": choice,
	})
}

// handleState returns the run snapshot or a jq projection of it.
func (s *ConclaveServer) handleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return marshalResult(s.runner.Snapshot())
	}

	result, err := s.runner.Query(ctx, query)
	if err != nil {
		return toolError("query failed", err), nil
	}
	return marshalResult(map[string]any{"query": query, "result": result})
}

// handleDiagram draws the script, optionally with the current run's progress.
func (s *ConclaveServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "svg" && format != "png" {
		return mcp.NewToolResultError("format must be ascii, mermaid, svg, or png"), nil
	}

	var state *schema.RunState
	if req.GetBool("include_status", true) {
		snap := s.runner.Snapshot()
		state = &snap
	}

	model, buildErr := diagram.Build(s.runner.Script(), state)
	if buildErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", buildErr)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCIIAuto(ctx, model, s.binDir)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	case "svg":
		svg, imgErr := diagram.RenderImage(ctx, model, diagram.FormatSVG)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(string(svg)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model, diagram.FormatPNG)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultImage(model.Title, base64.StdEncoding.EncodeToString(png), "image/png"), nil
	}
}

// --- Internal helpers ---

// parseChoice accepts a JSON number, a numeric string, or an agent/position name.
func (s *ConclaveServer) parseChoice(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, schema.NewErrorf(schema.ErrCodeValidation, "choice %v is not an integer", v)
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
		return decision.ParseChoice(s.runner.Snapshot().Disagreement(), v)
	default:
		return 0, schema.NewError(schema.ErrCodeValidation, "choice must be a number or a string")
	}
}

// captureSession maps the run to the calling MCP session for notifications.
func (s *ConclaveServer) captureSession(ctx context.Context, runID string) {
	if runID == "" {
		return
	}
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(runID, session.SessionID())
	}
}

// toolError renders err as a tool error, keeping the conclave error code visible.
func toolError(prefix string, err error) *mcp.CallToolResult {
	var ce *schema.ConclaveError
	if errors.As(err, &ce) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: [%s] %s", prefix, ce.Code, ce.Message))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
