// Package osm provides the identity model for OpenStreetMap objects shown in
// the viewer and the HTTP plumbing used to talk to OSM related services.
package osm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Kind is one of the three OSM object categories.
type Kind int

const (
	Node Kind = iota
	Way
	Relation
)

// Kinds lists all kinds in panel order.
var Kinds = []Kind{Node, Way, Relation}

// ZoomToMaxExtent is the largest bbox side (in degrees) the viewer will
// still offer to zoom to.
const ZoomToMaxExtent = 0.04

// FeatureSource is the vector source name all detail layers belong to.
const FeatureSource = "osm"

// Letter returns the single letter type prefix ("n", "w" or "r").
func (k Kind) Letter() string {
	switch k {
	case Node:
		return "n"
	case Way:
		return "w"
	case Relation:
		return "r"
	}
	return "?"
}

// Long returns the lower case type name used in OSM URLs.
func (k Kind) Long() string {
	switch k {
	case Node:
		return "node"
	case Way:
		return "way"
	case Relation:
		return "relation"
	}
	return "unknown"
}

// Title returns the capitalized type name.
func (k Kind) Title() string {
	switch k {
	case Node:
		return "Node"
	case Way:
		return "Way"
	case Relation:
		return "Relation"
	}
	return "Unknown"
}

// Layer returns the pluralized kind name which is also the source layer.
func (k Kind) Layer() string {
	return k.Long() + "s"
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= Node && k <= Relation
}

func (k Kind) String() string {
	return k.Long()
}

// MarshalText encodes the kind as its long name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid kind %d", int(k))
	}
	return []byte(k.Long()), nil
}

// UnmarshalText accepts the letter, long or layer name of a kind.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses "n", "node", "nodes" (and the same for ways and
// relations), case insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "node", "nodes":
		return Node, nil
	case "w", "way", "ways":
		return Way, nil
	case "r", "relation", "relations":
		return Relation, nil
	}
	return Node, fmt.Errorf("unknown object kind %q", s)
}

// Ref identifies an object without its attributes.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   uint64 `json:"id"`
}

// ParseRef parses the short form used in hashes, e.g. "w7".
func ParseRef(s string) (Ref, error) {
	if len(s) < 2 {
		return Ref{}, fmt.Errorf("object reference %q too short", s)
	}
	kind, err := ParseKind(s[:1])
	if err != nil {
		return Ref{}, err
	}
	id, err := strconv.ParseUint(s[1:], 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf("object reference %q: %w", s, err)
	}
	return Ref{Kind: kind, ID: id}, nil
}

// String returns the short form, e.g. "w7".
func (r Ref) String() string {
	return r.Kind.Letter() + strconv.FormatUint(r.ID, 10)
}

// FeatureID returns the address of the object in the feature-state store.
func (r Ref) FeatureID() FeatureID {
	return FeatureID{Source: FeatureSource, SourceLayer: r.Kind.Layer(), ID: r.ID}
}

// FeatureID addresses one feature in the visual feature-state store.
type FeatureID struct {
	Source      string `json:"source"`
	SourceLayer string `json:"sourceLayer"`
	ID          uint64 `json:"id"`
}

// GeoObject is one OSM object observed under the pointer. It is not
// modified after construction.
type GeoObject struct {
	Kind       Kind              `json:"kind"`
	ID         uint64            `json:"id"`
	Attributes map[string]string `json:"attributes"`
	// BBox is nil for nodes.
	BBox *orb.Bound `json:"bbox,omitempty"`
	// Point is the node location when the hit carried one.
	Point *orb.Point `json:"point,omitempty"`
}

// Ref returns the identity of the object.
func (o GeoObject) Ref() Ref {
	return Ref{Kind: o.Kind, ID: o.ID}
}

// Same reports whether both objects have the same identity.
func (o GeoObject) Same(other GeoObject) bool {
	return o.Kind == other.Kind && o.ID == other.ID
}

// ShortID returns the short reference, e.g. "n3".
func (o GeoObject) ShortID() string {
	return o.Ref().String()
}

// FeatureID returns the feature-state address of the object.
func (o GeoObject) FeatureID() FeatureID {
	return o.Ref().FeatureID()
}

// Extent is the larger side of the bounding box in degrees, 0 for nodes
// and objects without a bbox.
func (o GeoObject) Extent() float64 {
	if o.Kind == Node || o.BBox == nil {
		return 0
	}
	return max(o.BBox.Max.X()-o.BBox.Min.X(), o.BBox.Max.Y()-o.BBox.Min.Y())
}

// CanZoomTo reports whether the object is small enough to zoom to.
func (o GeoObject) CanZoomTo() bool {
	return o.Extent() < ZoomToMaxExtent
}

var knownRelationTypes = map[string]bool{
	"multipolygon":     true,
	"restriction":      true,
	"route":            true,
	"boundary":         true,
	"associatedStreet": true,
	"public_transport": true,
	"destination_sign": true,
	"site":             true,
	"waterway":         true,
}

// TypeTitle is the heading shown in the panel. Relations of a well known
// type get it as prefix, e.g. "Multipolygon Relation".
func (o GeoObject) TypeTitle() string {
	if o.Kind != Relation {
		return o.Kind.Title()
	}
	t := o.Attributes["type"]
	if knownRelationTypes[t] {
		return strings.ToUpper(t[:1]) + t[1:] + " Relation"
	}
	return "Relation"
}

// URL is the object's page on openstreetmap.org.
func (o GeoObject) URL() string {
	return "https://www.openstreetmap.org/" + o.Kind.Long() + "/" + strconv.FormatUint(o.ID, 10)
}
