package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/conclave/internal/engine"
	"github.com/rendis/conclave/internal/streaming"
	"github.com/rendis/conclave/pkg/schema"
)

// Controller is the part of the sequencer exposed as MCP tools.
type Controller interface {
	engine.Runner
	Query(ctx context.Context, query string) (any, error)
	Script() *schema.Script
}

// ConclaveServerDeps holds the dependencies for creating a ConclaveServer.
type ConclaveServerDeps struct {
	Runner Controller
	Hub    streaming.EventHub
	Logger *slog.Logger
	// BinDir is searched for the mermaid-ascii binary used by the ascii diagram format.
	BinDir string
}

// ConclaveServer wraps an MCP server with the conclave tool handlers.
type ConclaveServer struct {
	runner    Controller
	hub       streaming.EventHub
	logger    *slog.Logger
	binDir    string
	sessions  *SessionRegistry
	notifier  *MCPNotifier
	mcpServer *server.MCPServer
}

// NewConclaveServer creates a new ConclaveServer with all 4 tools registered.
func NewConclaveServer(deps ConclaveServerDeps) *ConclaveServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &ConclaveServer{
		runner:   deps.Runner,
		hub:      deps.Hub,
		logger:   logger,
		binDir:   deps.BinDir,
		sessions: NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"conclave",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Conclave plays a scripted collaboration between three agents. Use conclave.start to submit a task, conclave.state to follow the step log, conclave.choose to break the tie when the run is awaiting_decision, and conclave.diagram to draw the script."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions, logger)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
// Run events are forwarded to the session that started the run.
func (s *ConclaveServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.hub != nil {
		go func() {
			if err := s.notifier.Forward(ctx, s.hub); err != nil {
				s.logger.Warn("mcp event forwarding stopped", "error", err)
			}
		}()
	}

	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *ConclaveServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Sessions returns the run-to-session registry.
func (s *ConclaveServer) Sessions() *SessionRegistry {
	return s.sessions
}

func (s *ConclaveServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: startTool(), Handler: s.handleStart},
		{Tool: chooseTool(), Handler: s.handleChoose},
		{Tool: stateTool(), Handler: s.handleState},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func startTool() mcp.Tool {
	return mcp.NewTool("conclave.start",
		mcp.WithDescription("Start a collaboration run for a task"),
		mcp.WithString("task", mcp.Required(), mcp.Description("Task the agents should work on")),
	)
}

func chooseTool() mcp.Tool {
	return mcp.NewTool("conclave.choose",
		mcp.WithDescription("Resolve the pending decision"),
		mcp.WithString("choice", mcp.Required(),
			mcp.Description("Option index (0 or 1), the proposing agent, or the position text"),
		),
	)
}

func stateTool() mcp.Tool {
	return mcp.NewTool("conclave.state",
		mcp.WithDescription("Get the current run state"),
		mcp.WithString("query", mcp.Description("Optional jq expression evaluated against the run state")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("conclave.diagram",
		mcp.WithDescription("Generate a diagram of the collaboration script. Returns ASCII art, Mermaid flowchart syntax, SVG markup, or a PNG image"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "svg", "png"),
			mcp.Description("Output format"),
		),
		mcp.WithBoolean("include_status", mcp.Description("Overlay the progress of the current run (default: true)")),
	)
}
