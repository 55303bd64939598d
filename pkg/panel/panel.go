// Package panel derives the info panel view model from the selection state.
package panel

import (
	"sort"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/selection"
)

// Status selects the overview message.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusUnlocked Status = "unlocked"
	StatusLocked   Status = "locked"
	StatusZoomIn   Status = "zoom-in"
)

// Overview messages.
const (
	MessageUnlocked = "🔓 (click to lock selection)"
	MessageLocked   = "🔒 (use Esc key or click to clear selection)"
	MessageZoomIn   = "(zoom in to show selection on map)"
)

// Attributes never shown in the tag table.
var hiddenAttributes = map[string]bool{"node_id": true, "way_id": true}

// Tag is one row of an object's tag table.
type Tag struct {
	Key       string       `json:"key"`
	Value     string       `json:"value"`
	Links     osm.TagLinks `json:"links"`
	ValueLink *osm.Link    `json:"value_link,omitempty"`
}

// Entry is one object in the panel.
type Entry struct {
	Index     int        `json:"index"`
	Ref       osm.Ref    `json:"ref"`
	ShortID   string     `json:"short_id"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Current   bool       `json:"current"`
	CanZoomTo bool       `json:"can_zoom_to"`
	BBox      *orb.Bound `json:"bbox,omitempty"`
	Point     *orb.Point `json:"point,omitempty"`
	Tags      []Tag      `json:"tags"`
}

// View is everything the presentation layer needs to draw the panel.
type View struct {
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
	// CountText is empty when nothing is selected.
	CountText string `json:"count_text"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
	Current   int    `json:"current"`
	HasPrev   bool   `json:"has_prev"`
	HasNext   bool   `json:"has_next"`
	Locked    bool   `json:"locked"`
	// ZoomNotice is set while the map is below the detail zoom.
	ZoomNotice bool `json:"zoom_notice"`
	// FilterEnabled tells whether the tag filter controls are usable.
	FilterEnabled bool `json:"filter_enabled"`
}

// Render builds the view for st. It has no side effects.
func Render(st selection.Status) View {
	all := st.State.Sets().All()
	current := st.State.Index()
	locked := selection.IsLocked(st.State)

	v := View{
		Entries:       make([]Entry, 0, len(all)),
		Count:         len(all),
		Current:       current,
		HasPrev:       current > 1,
		HasNext:       current > 0 && current < len(all),
		Locked:        locked,
		ZoomNotice:    !st.Enabled,
		FilterEnabled: st.Enabled,
	}

	for i, obj := range all {
		v.Entries = append(v.Entries, entry(i+1, obj, i+1 == current))
	}

	if v.Count > 0 {
		v.CountText = "Selected: " + strconv.Itoa(v.Count)
	}

	switch {
	case v.Count == 0:
		v.Status = StatusEmpty
	case !st.Enabled:
		v.Status, v.Message = StatusZoomIn, MessageZoomIn
	case locked:
		v.Status, v.Message = StatusLocked, MessageLocked
	default:
		v.Status, v.Message = StatusUnlocked, MessageUnlocked
	}
	return v
}

func entry(index int, obj osm.GeoObject, current bool) Entry {
	return Entry{
		Index:     index,
		Ref:       obj.Ref(),
		ShortID:   obj.ShortID(),
		Title:     obj.TypeTitle(),
		URL:       obj.URL(),
		Current:   current,
		CanZoomTo: obj.CanZoomTo(),
		BBox:      obj.BBox,
		Point:     obj.Point,
		Tags:      Tags(obj),
	}
}

// Pinned builds the entry for an object pinned in the settings. It is not
// part of the numbered list, so its index is 0.
func Pinned(obj osm.GeoObject) Entry {
	return entry(0, obj, false)
}

// Tags returns the visible tags of obj sorted by key.
func Tags(obj osm.GeoObject) []Tag {
	keys := make([]string, 0, len(obj.Attributes))
	for k := range obj.Attributes {
		if !hiddenAttributes[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	tags := make([]Tag, 0, len(keys))
	for _, k := range keys {
		v := obj.Attributes[k]
		tag := Tag{Key: k, Value: v, Links: osm.LinksForTag(k, v)}
		if link, ok := osm.ValueLink(k, v); ok {
			tag.ValueLink = &link
		}
		tags = append(tags, tag)
	}
	return tags
}
