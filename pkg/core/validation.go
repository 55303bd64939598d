package core

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmxray/pkg/osm"
)

// Zoom levels accepted from clients.
const (
	MinZoom = 0
	MaxZoom = 24
)

// ValidationError represents a validation error for zoom levels, object
// references or map bounds
type ValidationError struct {
	Code     string
	Message  string
	Guidance string
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidateZoom checks that zoom is a map zoom level
func ValidateZoom(zoom float64) error {
	if zoom < MinZoom || zoom > MaxZoom {
		return ValidationError{
			Code:     string(ErrInvalidZoom),
			Message:  fmt.Sprintf("Zoom must be between %d and %d, got %g", MinZoom, MaxZoom, zoom),
			Guidance: "Pass the zoom level reported by the map",
		}
	}
	return nil
}

// ValidateBounds checks that b is a lon/lat rectangle with min <= max
func ValidateBounds(b orb.Bound) error {
	for _, p := range []orb.Point{b.Min, b.Max} {
		if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
			return ValidationError{
				Code:     string(ErrInvalidParameter),
				Message:  fmt.Sprintf("Bounds corner %v outside lon/lat range", p),
				Guidance: "Ensure bounds are in decimal degrees as [lon, lat]",
			}
		}
	}
	if b.Min.Lon() > b.Max.Lon() || b.Min.Lat() > b.Max.Lat() {
		return ValidationError{
			Code:     string(ErrInvalidParameter),
			Message:  "Bounds minimum is greater than maximum",
			Guidance: "Pass the south-west corner as min and the north-east corner as max",
		}
	}
	return nil
}

// ParseRef parses an object reference like "w7"
func ParseRef(s string) (osm.Ref, error) {
	ref, err := osm.ParseRef(s)
	if err != nil {
		return osm.Ref{}, ValidationError{
			Code:     string(ErrInvalidRef),
			Message:  err.Error(),
			Guidance: "Use the kind letter n, w or r followed by the numeric id, e.g. w7",
		}
	}
	return ref, nil
}

// ParseRefParam extracts and validates an object reference from a
// CallToolRequest
func ParseRefParam(req mcp.CallToolRequest, key string) (osm.Ref, error) {
	if key == "" {
		key = "ref"
	}

	s := mcp.ParseString(req, key, "")
	if s == "" {
		return osm.Ref{}, ValidationError{
			Code:     string(ErrMissingParameter),
			Message:  fmt.Sprintf("Parameter %q is required", key),
			Guidance: "Pass an object reference, e.g. w7",
		}
	}
	return ParseRef(s)
}

// ParseRefWithLog parses an object reference and logs any errors
func ParseRefWithLog(req mcp.CallToolRequest, logger *slog.Logger, key string) (osm.Ref, error) {
	ref, err := ParseRefParam(req, key)
	if err != nil {
		logger.Error("invalid object reference", "error", err)
	}
	return ref, err
}
