// Package settings holds the user-visible viewer settings, their URL hash
// representation and the plan of side effects a settings change requires.
package settings

import (
	"strings"

	"github.com/NERVsystems/osmxray/pkg/osm"
)

// Hash keys.
const (
	KeyBackground = "b"
	KeyOpacity    = "o"
	KeyLayers     = "l"
	KeyTypes      = "t"
	KeyFilterKey  = "k"
	KeyFilterVal  = "v"
	KeySelected   = "s"
	KeyPosition   = "p"
)

// Default values as they appear in the hash.
const (
	DefaultBackground = "osm"
	DefaultOpacity    = 50
	defaultLayers     = "b"
	defaultTypes      = "nwr"
)

// Settings is the persisted view configuration.
type Settings struct {
	Background     string   `json:"background"`
	Opacity        int      `json:"opacity"`
	ShowBoundaries bool     `json:"show_boundaries"`
	ShowNodes      bool     `json:"show_nodes"`
	ShowWays       bool     `json:"show_ways"`
	ShowRelations  bool     `json:"show_relations"`
	FilterKey      string   `json:"filter_key"`
	FilterValue    string   `json:"filter_value"`
	Selected       *osm.Ref `json:"selected,omitempty"`
}

// Defaults returns the settings used when the hash says nothing.
func Defaults() Settings {
	return Settings{
		Background:     DefaultBackground,
		Opacity:        DefaultOpacity,
		ShowBoundaries: true,
		ShowNodes:      true,
		ShowWays:       true,
		ShowRelations:  true,
	}
}

// ShowKind reports whether objects of kind k are rendered.
func (s Settings) ShowKind(k osm.Kind) bool {
	switch k {
	case osm.Node:
		return s.ShowNodes
	case osm.Way:
		return s.ShowWays
	case osm.Relation:
		return s.ShowRelations
	}
	return false
}

// Layers returns the tile layer names for the enabled kinds, in kind order.
func (s Settings) Layers() []string {
	var layers []string
	for _, k := range osm.Kinds {
		if s.ShowKind(k) {
			layers = append(layers, k.Layer())
		}
	}
	return layers
}

// WithFilter returns a copy with the tag filter replaced.
func (s Settings) WithFilter(key, value string) Settings {
	s.FilterKey, s.FilterValue = key, value
	return s
}

// WithSelected returns a copy pinning ref, or clearing the pin when ref is nil.
func (s Settings) WithSelected(ref *osm.Ref) Settings {
	if ref != nil {
		r := *ref
		ref = &r
	}
	s.Selected = ref
	return s
}

func (s Settings) typesString() string {
	var b strings.Builder
	for _, k := range osm.Kinds {
		if s.ShowKind(k) {
			b.WriteString(k.Letter())
		}
	}
	return b.String()
}

func (s Settings) layersString() string {
	if s.ShowBoundaries {
		return "b"
	}
	return ""
}

// Field names one independently applied setting.
type Field string

const (
	FieldBackground Field = "background"
	FieldOpacity    Field = "opacity"
	FieldBoundaries Field = "boundaries"
	FieldNodes      Field = "nodes"
	FieldWays       Field = "ways"
	FieldRelations  Field = "relations"
	FieldFilter     Field = "filter"
	FieldSelected   Field = "selected"
)

// Diff lists the fields that differ between old and next, in apply order.
func Diff(old, next Settings) []Field {
	var fields []Field
	if old.Background != next.Background {
		fields = append(fields, FieldBackground)
	}
	if old.Opacity != next.Opacity {
		fields = append(fields, FieldOpacity)
	}
	if old.ShowBoundaries != next.ShowBoundaries {
		fields = append(fields, FieldBoundaries)
	}
	if old.ShowNodes != next.ShowNodes {
		fields = append(fields, FieldNodes)
	}
	if old.ShowWays != next.ShowWays {
		fields = append(fields, FieldWays)
	}
	if old.ShowRelations != next.ShowRelations {
		fields = append(fields, FieldRelations)
	}
	if old.FilterKey != next.FilterKey || old.FilterValue != next.FilterValue {
		fields = append(fields, FieldFilter)
	}
	if !sameRef(old.Selected, next.Selected) {
		fields = append(fields, FieldSelected)
	}
	return fields
}

func sameRef(a, b *osm.Ref) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
