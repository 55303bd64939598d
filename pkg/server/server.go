// Package server exposes the viewer backend over MCP (stdio and Streamable
// HTTP) and a JSON API for the map page.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/osmxray/pkg/session"
	"github.com/NERVsystems/osmxray/pkg/tools"
	"github.com/NERVsystems/osmxray/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "osmxray"

// Server encapsulates the MCP server with the viewer tools.
type Server struct {
	srv    *mcpserver.MCPServer
	logger *slog.Logger
}

// NewServer creates the MCP server with all tools of registry registered.
func NewServer(registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	registry.RegisterTools(srv)

	workflow := mcp.NewPrompt("viewer_workflow",
		mcp.WithPromptDescription("How to drive a viewer session with the session tools"),
	)
	srv.AddPrompt(workflow, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"Viewer Session Instructions",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(WorkflowPrompt())),
			},
		), nil
	})

	return &Server{srv: srv, logger: logger}
}

// WorkflowPrompt describes the session tools to a model.
func WorkflowPrompt() string {
	kinds := make([]string, 0)
	for _, k := range session.EventKinds() {
		kinds = append(kinds, string(k))
	}
	return `You are inspecting OpenStreetMap objects through an osmxray viewer session.

1. Call session_create with the URL hash of the map (for example "p=16/52.52/13.40") to get a session id.
2. Send what happens on the map with session_event. Event kinds: ` + strings.Join(kinds, ", ") + `.
   A pointer-move carries the object_type (node, way or relation) and the hits under the pointer.
   A click locks or releases the selection; the key PageUp/PageDown moves through the listed objects.
3. Each result holds the panel (listed objects with their tags), the feature-state operations for the map and the new URL hash.
4. Use object_fetch to look up one object by reference such as w7, and settings_encode/settings_decode to work with hashes.
5. Call session_close when done. Objects are only listed from zoom ` + "14" + ` upward.`
}

// ServeStdio serves MCP over in and out until ctx ends or in is closed.
// Neither ends the process: the HTTP transport keeps running.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		s.logger.Info("stdio transport closed")
		return nil
	}
	return fmt.Errorf("stdio transport: %w", err)
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}
