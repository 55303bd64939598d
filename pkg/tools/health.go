package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmxray/pkg/version"
)

// StatusOutput is the result of get_version.
type StatusOutput struct {
	Build          map[string]string `json:"build"`
	ActiveSessions int               `json:"active_sessions"`
	FeatureServer  bool              `json:"feature_server"`
}

// GetVersionTool returns the get_version tool definition.
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the build information of the osmxray service and the number of open viewer sessions"),
	)
}

// HandleGetVersion reports build information and session usage.
func (r *Registry) HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := StatusOutput{
		Build:         version.Info(),
		FeatureServer: r.objects != nil,
	}
	if r.sessions != nil {
		out.ActiveSessions = r.sessions.Len()
	}
	return jsonResult(r.logger, out), nil
}
