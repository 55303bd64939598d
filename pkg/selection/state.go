// Package selection implements the hover and lock state machine for the
// objects under the pointer.
package selection

import (
	"slices"

	"github.com/NERVsystems/osmxray/pkg/collect"
	"github.com/NERVsystems/osmxray/pkg/osm"
)

// Sets holds the hovered objects per kind. The concatenation nodes, ways,
// relations defines the 1-based addressing used by the panel.
type Sets struct {
	Nodes     []osm.GeoObject `json:"nodes"`
	Ways      []osm.GeoObject `json:"ways"`
	Relations []osm.GeoObject `json:"relations"`
}

// Of returns the list for kind.
func (s Sets) Of(kind osm.Kind) []osm.GeoObject {
	switch kind {
	case osm.Node:
		return s.Nodes
	case osm.Way:
		return s.Ways
	case osm.Relation:
		return s.Relations
	}
	return nil
}

// With returns a copy of s with the list for kind replaced.
func (s Sets) With(kind osm.Kind, objs []osm.GeoObject) Sets {
	objs = slices.Clip(objs)
	switch kind {
	case osm.Node:
		s.Nodes = objs
	case osm.Way:
		s.Ways = objs
	case osm.Relation:
		s.Relations = objs
	}
	return s
}

// All returns the concatenated list.
func (s Sets) All() []osm.GeoObject {
	return collect.Concat(s.Of)
}

// Total is the number of hovered objects of all kinds.
func (s Sets) Total() int {
	return len(s.Nodes) + len(s.Ways) + len(s.Relations)
}

// At returns the object at 1-based index.
func (s Sets) At(index int) (osm.GeoObject, bool) {
	if index < 1 || index > s.Total() {
		return osm.GeoObject{}, false
	}
	return s.All()[index-1], true
}

// State is one of Idle, Hovering or Locked.
type State interface {
	isState()
	// Sets returns the hovered objects.
	Sets() Sets
	// Index is the 1-based current entry, 0 when there is none.
	Index() int
}

// Idle means nothing is hovered.
type Idle struct{}

// Hovering follows the pointer. Index points at the current entry.
type Hovering struct {
	Objects Sets
	Current int
}

// Locked freezes the hovered objects until explicitly released.
type Locked struct {
	Objects Sets
	Current int
}

func (Idle) isState()     {}
func (Hovering) isState() {}
func (Locked) isState()   {}

func (Idle) Sets() Sets       { return Sets{} }
func (s Hovering) Sets() Sets { return s.Objects }
func (s Locked) Sets() Sets   { return s.Objects }

func (Idle) Index() int       { return 0 }
func (s Hovering) Index() int { return s.Current }
func (s Locked) Index() int   { return s.Current }

// IsLocked reports whether st is Locked.
func IsLocked(st State) bool {
	_, ok := st.(Locked)
	return ok
}

// Name returns a short label for logs and metrics.
func Name(st State) string {
	switch st.(type) {
	case Idle:
		return "idle"
	case Hovering:
		return "hovering"
	case Locked:
		return "locked"
	}
	return "unknown"
}

// Status is the full machine state: the selection state plus whether
// pointer input is accepted at the current zoom level.
type Status struct {
	State   State
	Enabled bool
}

// unlocked builds the unlocked state for sets, Idle if they are empty.
func unlocked(sets Sets, index int) State {
	if sets.Total() == 0 {
		return Idle{}
	}
	return Hovering{Objects: sets, Current: clamp(index, 1, sets.Total())}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
