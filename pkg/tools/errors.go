package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmxray/pkg/core"
)

// Common error guidance messages
const (
	GuidanceSessionGone   = "The session expired or was closed. Call session_create to start a new one."
	GuidanceEventFormat   = "Pass the event as an object with a kind field, e.g. {\"kind\": \"key\", \"key\": \"PageDown\"}."
	GuidanceFeatureServer = "The feature server could not be reached. Check the --feature-server flag."
	GuidanceGeneral       = "Please try again later or modify your request parameters."
)

// ErrorResponse returns a plain error result.
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// errorResult turns err into a tool result. Structured errors keep their
// code and guidance so clients can react to them.
func errorResult(err error) *mcp.CallToolResult {
	if mcpErr, ok := core.AsMCPError(err); ok {
		return mcpErr.ToMCPResult()
	}
	return core.NewError(core.ErrInternalError, err.Error()).
		WithGuidance(GuidanceGeneral).
		ToMCPResult()
}

// parseError reports arguments that could not be decoded into the tool's
// input type.
func parseError(tool string, err error) *mcp.CallToolResult {
	return core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("%s: failed to parse input: %v", tool, err)).
		ToMCPResult()
}
