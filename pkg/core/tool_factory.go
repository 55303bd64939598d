package core

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolFactory builds tool definitions with the parameters shared by the
// viewer tools.
type ToolFactory struct{}

// NewToolFactory creates a new tool factory
func NewToolFactory() *ToolFactory {
	return &ToolFactory{}
}

// CreateBasicTool creates a new tool with the specified name and description
func (f *ToolFactory) CreateBasicTool(name, description string) mcp.Tool {
	return mcp.NewTool(name, mcp.WithDescription(description))
}

// CreateSessionTool creates a tool addressing one viewer session. opts add
// the tool's own parameters.
func (f *ToolFactory) CreateSessionTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	all := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("session",
			mcp.Required(),
			mcp.Description("The session id returned by session_create"),
		),
	}
	return mcp.NewTool(name, append(all, opts...)...)
}

// CreateHashTool creates a tool taking a URL hash such as "o=75&t=wr".
func (f *ToolFactory) CreateHashTool(name, description string, required bool, opts ...mcp.ToolOption) mcp.Tool {
	hashOpts := []mcp.PropertyOption{
		mcp.Description("URL hash with or without the leading #, e.g. \"p=16/52.5/13.4&o=75&t=wr\""),
	}
	if required {
		hashOpts = append(hashOpts, mcp.Required())
	}
	all := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("hash", hashOpts...),
	}
	return mcp.NewTool(name, append(all, opts...)...)
}

// ZoomOption adds an optional map zoom parameter.
func (f *ToolFactory) ZoomOption(description string) mcp.ToolOption {
	return mcp.WithNumber("zoom",
		mcp.Description(fmt.Sprintf("%s (%d to %d)", description, MinZoom, MaxZoom)),
		mcp.Min(MinZoom),
		mcp.Max(MaxZoom),
	)
}

// ObjectOption adds a required object parameter documented by its fields.
func (f *ToolFactory) ObjectOption(name, description string, fields ...string) mcp.ToolOption {
	if len(fields) > 0 {
		description += ". Fields: " + strings.Join(fields, ", ")
	}
	return mcp.WithObject(name,
		mcp.Required(),
		mcp.Description(description),
	)
}
