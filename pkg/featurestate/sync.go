// Package featurestate pushes hover and selection flags into the external
// per-feature visual state store used by the map renderer.
package featurestate

import (
	"github.com/NERVsystems/osmxray/pkg/osm"
)

// Flag keys understood by the map style.
const (
	KeyHover     = "hover"
	KeySelection = "selection"
)

// Store is the renderer's feature-state store.
type Store interface {
	// SetState merges state into the feature's current state.
	SetState(id osm.FeatureID, state map[string]bool)
	// RemoveState drops all state of every feature in a source layer.
	RemoveState(source, sourceLayer string)
}

// Sync is the only writer of the feature-state store. Updates are never
// diffs: a kind is cleared before its flags are set again.
type Sync struct {
	store Store
}

// New creates a Sync writing to store.
func New(store Store) *Sync {
	return &Sync{store: store}
}

// SetFlag sets one flag on one object.
func (s *Sync) SetFlag(obj osm.GeoObject, key string, value bool) {
	s.store.SetState(obj.FeatureID(), map[string]bool{key: value})
}

// ClearAll removes every flag from all features of kind.
func (s *Sync) ClearAll(kind osm.Kind) {
	s.store.RemoveState(osm.FeatureSource, kind.Layer())
}

// ReplaceHover clears kind and flags every object as hovered.
func (s *Sync) ReplaceHover(kind osm.Kind, objs []osm.GeoObject) {
	s.ClearAll(kind)
	for _, obj := range objs {
		s.SetFlag(obj, KeyHover, true)
	}
}

// Select marks the object at the 1-based index in the concatenated order
// as selected and every other object as not selected. Index 0 deselects all.
func (s *Sync) Select(all []osm.GeoObject, index int) {
	for i, obj := range all {
		s.SetFlag(obj, KeySelection, i == index-1)
	}
}
