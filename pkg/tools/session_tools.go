package tools

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/session"
)

var factory = core.NewToolFactory()

// SessionCreateInput are the arguments of session_create.
type SessionCreateInput struct {
	Hash string   `json:"hash"`
	Zoom *float64 `json:"zoom,omitempty"`
}

// SessionEventInput are the arguments of session_event.
type SessionEventInput struct {
	Session string        `json:"session"`
	Event   session.Event `json:"event"`
}

// SessionInput addresses one session.
type SessionInput struct {
	Session string `json:"session"`
}

// SessionCreateTool returns the session_create tool definition.
func SessionCreateTool() mcp.Tool {
	return factory.CreateHashTool("session_create",
		"Start a viewer session. The hash restores settings, map position and the pinned object; "+
			"the result holds the session id and the initial map actions",
		false,
		factory.ZoomOption("Initial map zoom, defaults to the zoom of the p parameter"),
	)
}

// SessionEventTool returns the session_event tool definition.
func SessionEventTool() mcp.Tool {
	kinds := make([]string, 0)
	for _, k := range session.EventKinds() {
		kinds = append(kinds, string(k))
	}
	return factory.CreateSessionTool("session_event",
		"Deliver one viewer event and get the panel, feature-state operations, map actions and hash to apply",
		factory.ObjectOption("event", "The event. kind is one of "+strings.Join(kinds, ", "),
			"kind", "object_type", "hits", "pointer", "key", "shift", "delta_y",
			"zoom", "center", "bounds", "index", "ref", "settings",
			"filter_key", "filter_value", "mode", "system"),
	)
}

// SessionStateTool returns the session_state tool definition.
func SessionStateTool() mcp.Tool {
	return factory.CreateSessionTool("session_state",
		"Get the current panel, settings and hash of a session without changing it")
}

// SessionCloseTool returns the session_close tool definition.
func SessionCloseTool() mcp.Tool {
	return factory.CreateSessionTool("session_close", "End a viewer session")
}

func requireSession(id string) error {
	if strings.TrimSpace(id) == "" {
		return core.NewError(core.ErrMissingParameter, "session is required").
			WithGuidance("Call session_create first and pass the returned session id")
	}
	return nil
}

// HandleSessionCreate starts a session.
func (r *Registry) HandleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(r.logger, "session_create",
		func(ctx context.Context, in SessionCreateInput, logger *slog.Logger) (any, error) {
			_, u, err := r.sessions.Create(ctx, in.Hash, in.Zoom)
			if err != nil {
				return nil, err
			}
			logger.Info("session created", "session", u.Session)
			return u, nil
		})(ctx, req)
}

// HandleSessionEvent applies one event.
func (r *Registry) HandleSessionEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(r.logger, "session_event",
		func(ctx context.Context, in SessionEventInput, logger *slog.Logger) (any, error) {
			if err := requireSession(in.Session); err != nil {
				return nil, err
			}
			if in.Event.Kind == "" {
				return nil, core.NewError(core.ErrMissingParameter, "event.kind is required").
					WithGuidance(GuidanceEventFormat)
			}
			u, err := r.sessions.Dispatch(ctx, in.Session, in.Event)
			if err != nil {
				return nil, withSessionGuidance(err)
			}
			return u, nil
		})(ctx, req)
}

// HandleSessionState returns the state of a session.
func (r *Registry) HandleSessionState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(r.logger, "session_state",
		func(ctx context.Context, in SessionInput, logger *slog.Logger) (any, error) {
			if err := requireSession(in.Session); err != nil {
				return nil, err
			}
			s, err := r.sessions.Get(in.Session)
			if err != nil {
				return nil, withSessionGuidance(err)
			}
			return s.State(), nil
		})(ctx, req)
}

// HandleSessionClose ends a session.
func (r *Registry) HandleSessionClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(r.logger, "session_close",
		func(ctx context.Context, in SessionInput, logger *slog.Logger) (any, error) {
			if err := requireSession(in.Session); err != nil {
				return nil, err
			}
			if err := r.sessions.Close(in.Session); err != nil {
				return nil, withSessionGuidance(err)
			}
			return map[string]any{"session": in.Session, "closed": true}, nil
		})(ctx, req)
}

func withSessionGuidance(err error) error {
	var mcpErr *core.MCPError
	if errors.As(err, &mcpErr) && mcpErr.Code == string(core.ErrNotFound) {
		return mcpErr.WithGuidance(GuidanceSessionGone)
	}
	return err
}
