package featurestate

import (
	"maps"
	"slices"
	"sync"

	"github.com/NERVsystems/osmxray/pkg/osm"
)

// OpType is the kind of a recorded store operation.
type OpType string

const (
	OpSet    OpType = "set"
	OpRemove OpType = "remove"
)

// Op is one operation the presentation layer has to replay on its map.
type Op struct {
	Type        OpType          `json:"op"`
	Feature     *osm.FeatureID  `json:"feature,omitempty"`
	Source      string          `json:"source,omitempty"`
	SourceLayer string          `json:"sourceLayer,omitempty"`
	State       map[string]bool `json:"state,omitempty"`
}

// Recorder is a Store that queues operations for the presentation layer
// and keeps the resulting flags so they can be inspected.
type Recorder struct {
	mu    sync.Mutex
	ops   []Op
	flags map[osm.FeatureID]map[string]bool
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{flags: make(map[osm.FeatureID]map[string]bool)}
}

func (r *Recorder) SetState(id osm.FeatureID, state map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Type: OpSet, Feature: &id, State: maps.Clone(state)})

	cur, ok := r.flags[id]
	if !ok {
		cur = make(map[string]bool, len(state))
		r.flags[id] = cur
	}
	maps.Copy(cur, state)
}

func (r *Recorder) RemoveState(source, sourceLayer string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Type: OpRemove, Source: source, SourceLayer: sourceLayer})

	for id := range r.flags {
		if id.Source == source && id.SourceLayer == sourceLayer {
			delete(r.flags, id)
		}
	}
}

// Drain returns the operations recorded since the last call.
func (r *Recorder) Drain() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := r.ops
	r.ops = nil
	if ops == nil {
		return []Op{}
	}
	return ops
}

// Flag returns the current value of key for a feature.
func (r *Recorder) Flag(id osm.FeatureID, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags[id][key]
}

// Flagged returns all features with key set to true, sorted by layer and id.
func (r *Recorder) Flagged(key string) []osm.FeatureID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []osm.FeatureID
	for id, state := range r.flags {
		if state[key] {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b osm.FeatureID) int {
		if a.SourceLayer != b.SourceLayer {
			if a.SourceLayer < b.SourceLayer {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}
