package collect

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/NERVsystems/osmxray/pkg/osm"
)

// idProperties are consulted when a feature has no top level id.
var idProperties = []string{"osm_id", "id"}

// HitsFromGeoJSON converts a GeoJSON feature collection into hits. Features
// without a usable numeric id are skipped. Ways and relations without bbox
// properties get them from their geometry.
func HitsFromGeoJSON(kind osm.Kind, fc *geojson.FeatureCollection) []Hit {
	if fc == nil {
		return nil
	}

	hits := make([]Hit, 0, len(fc.Features))
	for _, f := range fc.Features {
		id, ok := featureID(f)
		if !ok {
			continue
		}

		props := make(map[string]any, len(f.Properties)+4)
		for k, v := range f.Properties {
			props[k] = v
		}

		if kind != osm.Node && f.Geometry != nil {
			if _, has := props[PropXMin]; !has {
				b := f.Geometry.Bound()
				props[PropXMin] = b.Min.X()
				props[PropYMin] = b.Min.Y()
				props[PropXMax] = b.Max.X()
				props[PropYMax] = b.Max.Y()
			}
		}

		hits = append(hits, Hit{ID: id, Properties: props, Geometry: f.Geometry})
	}
	return hits
}

// ParseGeoJSON decodes a feature collection and collects its objects.
func ParseGeoJSON(kind osm.Kind, data []byte) ([]osm.GeoObject, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding feature collection: %w", err)
	}
	return Collect(kind, HitsFromGeoJSON(kind, fc)), nil
}

func featureID(f *geojson.Feature) (uint64, bool) {
	if id, ok := parseID(f.ID); ok {
		return id, true
	}
	for _, k := range idProperties {
		if id, ok := parseID(f.Properties[k]); ok {
			return id, true
		}
	}
	return 0, false
}

func parseID(v any) (uint64, bool) {
	switch id := v.(type) {
	case float64:
		if id < 0 || id != float64(uint64(id)) {
			return 0, false
		}
		return uint64(id), true
	case json.Number:
		n, err := strconv.ParseUint(id.String(), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseUint(id, 10, 64)
		return n, err == nil
	case int:
		if id < 0 {
			return 0, false
		}
		return uint64(id), true
	case int64:
		if id < 0 {
			return 0, false
		}
		return uint64(id), true
	case uint64:
		return id, true
	}
	return 0, false
}
