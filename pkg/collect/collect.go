// Package collect turns raw hit-test results into deduplicated, ordered
// GeoObjects.
package collect

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmxray/pkg/osm"
)

// Property names of the bounding box carried by way and relation features.
const (
	PropXMin = "@xmin"
	PropYMin = "@ymin"
	PropXMax = "@xmax"
	PropYMax = "@ymax"
)

var bboxProps = []string{PropXMin, PropYMin, PropXMax, PropYMax}

// Hit is one feature fragment reported under the pointer. A long way can be
// reported once per tile it crosses.
type Hit struct {
	ID         uint64         `json:"id"`
	Properties map[string]any `json:"properties"`
	Geometry   orb.Geometry   `json:"-"`
}

// Collect sorts hits by id and emits one GeoObject per run of equal ids.
// The attributes of the first hit in each run win.
func Collect(kind osm.Kind, hits []Hit) []osm.GeoObject {
	if len(hits) == 0 {
		return []osm.GeoObject{}
	}

	sorted := slices.Clone(hits)
	slices.SortStableFunc(sorted, func(a, b Hit) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	objects := make([]osm.GeoObject, 0, len(sorted))
	for i, h := range sorted {
		if i > 0 && sorted[i-1].ID == h.ID {
			continue
		}
		objects = append(objects, newObject(kind, h))
	}
	return objects
}

func newObject(kind osm.Kind, h Hit) osm.GeoObject {
	obj := osm.GeoObject{
		Kind:       kind,
		ID:         h.ID,
		Attributes: make(map[string]string, len(h.Properties)),
	}

	for k, v := range h.Properties {
		if slices.Contains(bboxProps, k) {
			continue
		}
		obj.Attributes[k] = stringify(v)
	}

	if kind == osm.Node {
		if p, ok := h.Geometry.(orb.Point); ok {
			obj.Point = &p
		}
		return obj
	}

	if b, ok := extractBound(h.Properties); ok {
		obj.BBox = &b
	}
	return obj
}

// extractBound reads the four bbox properties. All four must be numeric.
func extractBound(props map[string]any) (orb.Bound, bool) {
	var vals [4]float64
	for i, k := range bboxProps {
		v, ok := props[k]
		if !ok {
			return orb.Bound{}, false
		}
		f, ok := toFloat(v)
		if !ok {
			return orb.Bound{}, false
		}
		vals[i] = f
	}
	return orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case uint64:
		return strconv.FormatUint(s, 10)
	}
	return fmt.Sprint(v)
}

// Concat joins the lists returned by of in panel order: nodes, ways,
// relations.
func Concat(of func(osm.Kind) []osm.GeoObject) []osm.GeoObject {
	n := 0
	for _, k := range osm.Kinds {
		n += len(of(k))
	}
	all := make([]osm.GeoObject, 0, n)
	for _, k := range osm.Kinds {
		all = append(all, of(k)...)
	}
	return all
}
