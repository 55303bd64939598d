package session

import (
	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmxray/pkg/collect"
	"github.com/NERVsystems/osmxray/pkg/featurestate"
	"github.com/NERVsystems/osmxray/pkg/location"
	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/panel"
	"github.com/NERVsystems/osmxray/pkg/settings"
)

// EventKind names an input from the presentation layer.
type EventKind string

const (
	EventPointerMove  EventKind = "pointer-move"
	EventPointerLeave EventKind = "pointer-leave"
	EventClick        EventKind = "click"
	EventKey          EventKind = "key"
	EventWheel        EventKind = "wheel"
	EventZoom         EventKind = "zoom"
	EventSelect       EventKind = "select"
	EventFocus        EventKind = "focus"
	EventSettings     EventKind = "settings"
	EventFilter       EventKind = "filter"
	EventOpenEditor   EventKind = "open-editor"
	EventLocation     EventKind = "location"
)

// Keys handled by key events. Others are ignored.
const (
	KeyEscape   = "Escape"
	KeyPageUp   = "PageUp"
	KeyPageDown = "PageDown"
)

// Hit is one feature fragment reported by the map's hit test.
type Hit struct {
	ID         uint64         `json:"id"`
	Properties map[string]any `json:"properties"`
	// Point is the location of a node feature.
	Point *orb.Point `json:"point,omitempty"`
}

func (h Hit) collect() collect.Hit {
	c := collect.Hit{ID: h.ID, Properties: h.Properties}
	if h.Point != nil {
		c.Geometry = *h.Point
	}
	return c
}

// Event is one input. Which fields are read depends on Kind.
type Event struct {
	Kind EventKind `json:"kind"`

	// pointer-move, pointer-leave
	ObjectType string     `json:"object_type,omitempty"`
	Hits       []Hit      `json:"hits,omitempty"`
	Pointer    *orb.Point `json:"pointer,omitempty"`

	// key
	Key string `json:"key,omitempty"`

	// wheel
	Shift  bool    `json:"shift,omitempty"`
	DeltaY float64 `json:"delta_y,omitempty"`

	// zoom
	Zoom   *float64   `json:"zoom,omitempty"`
	Center *orb.Point `json:"center,omitempty"`
	Bounds *orb.Bound `json:"bounds,omitempty"`

	// focus, select: 1-based panel entry. select also accepts a reference
	// like "w7"; a select with neither removes the pin.
	Index int    `json:"index,omitempty"`
	Ref   string `json:"ref,omitempty"`

	// settings
	Settings *settings.Settings `json:"settings,omitempty"`

	// filter
	FilterKey   string `json:"filter_key,omitempty"`
	FilterValue string `json:"filter_value,omitempty"`

	// location
	Mode   string `json:"mode,omitempty"`
	System string `json:"system,omitempty"`

	// Filled in before the session lock is taken.
	object    *osm.GeoObject
	editorErr error
}

// Update is the answer to one event: everything the presentation layer
// must apply to stay consistent.
type Update struct {
	Session  string            `json:"session"`
	Panel    panel.View        `json:"panel"`
	Ops      []featurestate.Op `json:"ops"`
	Actions  []settings.Action `json:"actions,omitempty"`
	Settings settings.Settings `json:"settings"`
	Hash     string            `json:"hash"`
	// Focus is the panel entry to scroll to, 0 for none.
	Focus    int             `json:"focus,omitempty"`
	Pinned   *panel.Entry    `json:"pinned,omitempty"`
	Links    *location.Links `json:"links,omitempty"`
	Location string          `json:"location,omitempty"`
	Notice   string          `json:"notice,omitempty"`
}
