package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/panel"
	"github.com/NERVsystems/osmxray/pkg/settings"
)

// SettingsEncodeInput are the arguments of settings_encode. Fields missing
// from Settings keep their defaults.
type SettingsEncodeInput struct {
	Settings json.RawMessage `json:"settings"`
	// Hash supplies parameters to carry over, such as the map position.
	Hash string `json:"hash,omitempty"`
}

// SettingsDecodeInput are the arguments of settings_decode.
type SettingsDecodeInput struct {
	Hash string `json:"hash"`
}

// SettingsEncodeTool returns the settings_encode tool definition.
func SettingsEncodeTool() mcp.Tool {
	return factory.CreateHashTool("settings_encode",
		"Encode viewer settings as a URL hash. Settings equal to their default are left out",
		false,
		factory.ObjectOption("settings", "The settings to encode",
			"background", "opacity", "show_boundaries", "show_nodes", "show_ways",
			"show_relations", "filter_key", "filter_value", "selected"),
	)
}

// SettingsDecodeTool returns the settings_decode tool definition.
func SettingsDecodeTool() mcp.Tool {
	return factory.CreateHashTool("settings_decode",
		"Decode a URL hash into viewer settings. Malformed fields keep their default",
		true,
	)
}

// HandleSettingsEncode encodes settings as a hash.
func HandleSettingsEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(slog.Default(), "settings_encode",
		func(ctx context.Context, in SettingsEncodeInput, logger *slog.Logger) (any, error) {
			hash, err := settings.EncodeJSON(in.Settings, in.Hash)
			if err != nil {
				return nil, core.NewValidationError(core.ErrInvalidParameter, err.Error()).
					WithSuggestions(settings.Backgrounds()...)
			}
			return map[string]string{"hash": hash}, nil
		})(ctx, req)
}

// HandleSettingsDecode decodes a hash into settings.
func HandleSettingsDecode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput(slog.Default(), "settings_decode",
		func(ctx context.Context, in SettingsDecodeInput, logger *slog.Logger) (any, error) {
			return settings.Summarize(in.Hash), nil
		})(ctx, req)
}

// ObjectFetchOutput is the result of object_fetch.
type ObjectFetchOutput struct {
	Object osm.GeoObject `json:"object"`
	Entry  panel.Entry   `json:"entry"`
}

// ObjectFetchTool returns the object_fetch tool definition.
func ObjectFetchTool() mcp.Tool {
	return mcp.NewTool("object_fetch",
		mcp.WithDescription("Load one OSM object with its tags and bounding box from the feature server"),
		mcp.WithString("ref",
			mcp.Required(),
			mcp.Description("Object reference: n, w or r followed by the id, e.g. w7"),
		),
	)
}

// HandleObjectFetch loads one object and renders it as a panel entry.
func (r *Registry) HandleObjectFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := core.ParseRefWithLog(req, r.logger, "ref")
	if err != nil {
		return errorResult(err), nil
	}
	if r.objects == nil {
		return core.NewError(core.ErrServiceUnavailable, "no feature server configured").
			WithGuidance(GuidanceFeatureServer).
			ToMCPResult(), nil
	}

	obj, err := r.objects.Fetch(ctx, ref)
	if err != nil {
		r.logger.Debug("object fetch failed", "ref", ref.String(), "error", err)
		return errorResult(err), nil
	}
	return jsonResult(r.logger, ObjectFetchOutput{Object: obj, Entry: panel.Pinned(obj)}), nil
}
