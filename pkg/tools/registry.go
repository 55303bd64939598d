// Package tools exposes viewer sessions and the settings hash codec as MCP
// tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmxray/pkg/monitoring"
	"github.com/NERVsystems/osmxray/pkg/session"
	"github.com/NERVsystems/osmxray/pkg/tracing"
)

// Handler is the signature of every tool handler.
type Handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Registry contains all tool definitions and handlers
type Registry struct {
	logger   *slog.Logger
	sessions *session.Manager
	// objects may be nil when no feature server is configured
	objects session.Fetcher
}

// NewRegistry creates a new tool registry
func NewRegistry(logger *slog.Logger, sessions *session.Manager, objects session.Fetcher) *Registry {
	return &Registry{
		logger:   logger.With("component", "tools"),
		sessions: sessions,
		objects:  objects,
	}
}

// ToolDefinition represents one MCP tool.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     Handler
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the version and build information of the service",
			Tool:        GetVersionTool(),
			Handler:     r.HandleGetVersion,
		},

		// Session tools
		{
			Name:        "session_create",
			Description: "Start a viewer session from a URL hash. Parameters: hash (string), zoom (number, optional)",
			Tool:        SessionCreateTool(),
			Handler:     r.HandleSessionCreate,
		},
		{
			Name:        "session_event",
			Description: "Deliver one viewer event to a session. Parameters: session (string), event (object with kind and kind specific fields)",
			Tool:        SessionEventTool(),
			Handler:     r.HandleSessionEvent,
		},
		{
			Name:        "session_state",
			Description: "Get the panel, settings and hash of a session. Parameters: session (string)",
			Tool:        SessionStateTool(),
			Handler:     r.HandleSessionState,
		},
		{
			Name:        "session_close",
			Description: "End a viewer session. Parameters: session (string)",
			Tool:        SessionCloseTool(),
			Handler:     r.HandleSessionClose,
		},

		// Stateless tools
		{
			Name:        "settings_encode",
			Description: "Encode viewer settings as a URL hash. Parameters: settings (object)",
			Tool:        SettingsEncodeTool(),
			Handler:     HandleSettingsEncode,
		},
		{
			Name:        "settings_decode",
			Description: "Decode a URL hash into viewer settings. Parameters: hash (string)",
			Tool:        SettingsDecodeTool(),
			Handler:     HandleSettingsDecode,
		},
		{
			Name:        "object_fetch",
			Description: "Load one OSM object with its tags from the feature server. Parameters: ref (string, e.g. w7)",
			Tool:        ObjectFetchTool(),
			Handler:     r.HandleObjectFetch,
		},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, server.ToolHandlerFunc(r.wrapWithTracing(def.Name, def.Handler)))
	}
}

// wrapWithTracing wraps a tool handler with a span and request metrics
func (r *Registry) wrapWithTracing(toolName string, handler Handler) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName,
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)

		// Tool failures are reported in the result, not as Go errors.
		failed := err != nil || (result != nil && result.IsError)
		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case failed:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		monitoring.RecordMCPRequest(toolName, duration, !failed)

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds(), resultSize)...)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}
