// Package mcp exposes the graph transformer as MCP tools so agent tooling
// can render execution graphs without going through the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stella-ai/tracegraph/internal/graph"
	"github.com/stella-ai/tracegraph/internal/pipeline"
)

// GraphServerDeps holds the dependencies for creating a GraphServer.
type GraphServerDeps struct {
	Pipeline *pipeline.Pipeline
	Logger   *slog.Logger
}

// GraphServer wraps an MCP server with graph rendering tool handlers.
type GraphServer struct {
	pipeline  *pipeline.Pipeline
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewGraphServer creates a GraphServer with the render tool registered.
func NewGraphServer(deps GraphServerDeps) *GraphServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &GraphServer{
		pipeline: deps.Pipeline,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"tracegraph",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Tracegraph turns an agent execution trace into a render-ready workflow graph. Use tracegraph.render with either a session_id (fetches the external trace) or tool_calls (raw invocation list)."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *GraphServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *GraphServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *GraphServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: renderTool(), Handler: s.handleRender},
	}
}

func renderTool() mcp.Tool {
	return mcp.NewTool("tracegraph.render",
		mcp.WithDescription("Render the workflow graph for an agent run"),
		mcp.WithString("session_id", mcp.Description("Session to fetch the external trace for")),
		mcp.WithString("tool_calls", mcp.Description("JSON array of raw tool calls, used when no trace is available")),
		mcp.WithNumber("step", mcp.Description("Animation cursor; -1 (default) renders the completed run")),
		mcp.WithString("lang", mcp.Enum("fr", "en"), mcp.Description("Display language for node content")),
		mcp.WithString("query", mcp.Description("The user's question, shown on the agent node")),
	)
}

func (s *GraphServer) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	toolCalls := req.GetString("tool_calls", "")
	if sessionID == "" && toolCalls == "" {
		return mcp.NewToolResultError("either session_id or tool_calls is required"), nil
	}

	renderReq := pipeline.Request{
		SessionID:   sessionID,
		CurrentStep: req.GetInt("step", graph.WholeRun),
		Language:    req.GetString("lang", ""),
		UserQuery:   req.GetString("query", ""),
	}
	if toolCalls != "" {
		renderReq.Raw = json.RawMessage(toolCalls)
	}

	g := s.pipeline.Render(ctx, renderReq)

	out, err := json.Marshal(g)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode graph: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
