// Package location formats map coordinates for display and builds the
// links that open the current view elsewhere.
package location

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/NERVsystems/osmxray/pkg/josm"
)

// MinZoomEditor is the lowest zoom at which editor links are offered.
const MinZoomEditor = 15

// System is a coordinate display system.
type System string

const (
	LonLat   System = "lonlat"
	Mercator System = "mercator"
)

// ParseSystem accepts "lonlat" and "mercator". The empty string is LonLat.
func ParseSystem(s string) (System, error) {
	switch System(s) {
	case "", LonLat:
		return LonLat, nil
	case Mercator:
		return Mercator, nil
	}
	return "", fmt.Errorf("unknown coordinate system %q", s)
}

// Mode selects which location is shown.
type Mode string

const (
	ModeMouse  Mode = "mouse"
	ModeCenter Mode = "center"
	ModeBounds Mode = "bounds"
)

// ParseMode accepts "mouse", "center" and "bounds". The empty string is
// ModeMouse.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMouse:
		return ModeMouse, nil
	case ModeCenter, ModeBounds:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown location mode %q", s)
}

// Format renders p as "lon lat" with five decimals or as Web Mercator
// metres "x y" with two decimals.
func Format(p orb.Point, sys System) string {
	if sys == Mercator {
		m := project.WGS84.ToMercator(p)
		return strconv.FormatFloat(m[0], 'f', 2, 64) + " " + strconv.FormatFloat(m[1], 'f', 2, 64)
	}
	return strconv.FormatFloat(wrap(p[0]), 'f', 5, 64) + " " + strconv.FormatFloat(p[1], 'f', 5, 64)
}

// FormatBound renders the south-west and north-east corners of b.
func FormatBound(b orb.Bound, sys System) string {
	return Format(b.Min, sys) + ", " + Format(b.Max, sys)
}

// wrap brings a longitude into [-180, 180).
func wrap(lon float64) float64 {
	w := math.Mod(lon+180, 360)
	if w < 0 {
		w += 360
	}
	return w - 180
}

// View is the visible part of the map.
type View struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Bounds orb.Bound `json:"bounds"`
}

// Describe returns the location text for mode. pointer is the mouse
// position and may be nil when the pointer is outside the map.
func Describe(mode Mode, sys System, v View, pointer *orb.Point) string {
	switch mode {
	case ModeCenter:
		return Format(v.Center, sys)
	case ModeBounds:
		return FormatBound(v.Bounds, sys)
	}
	if pointer == nil {
		return ""
	}
	return Format(*pointer, sys)
}

// Links opens the current view in other tools. Editor links are empty
// below MinZoomEditor.
type Links struct {
	OSM  string `json:"osm"`
	ID   string `json:"id,omitempty"`
	JOSM string `json:"josm,omitempty"`
}

// EditorsAvailable reports whether editing is offered at zoom.
func EditorsAvailable(zoom float64) bool {
	return zoom >= MinZoomEditor
}

// LinksFor builds the links for v. josmBase is the JOSM remote control URL.
func LinksFor(v View, josmBase string) Links {
	zxy := strconv.Itoa(int(math.Round(v.Zoom))) + "/" +
		strconv.FormatFloat(v.Center[1], 'f', 5, 64) + "/" +
		strconv.FormatFloat(v.Center[0], 'f', 5, 64)

	l := Links{OSM: "https://www.openstreetmap.org/#map=" + zxy}
	if EditorsAvailable(v.Zoom) {
		l.ID = "https://www.openstreetmap.org/edit#map=" + zxy
		l.JOSM = josm.LoadAndZoomURL(josmBase, v.Bounds)
	}
	return l
}
