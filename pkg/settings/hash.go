package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/NERVsystems/osmxray/pkg/osm"
)

// Param is a hash parameter this package does not interpret. Its value is
// kept exactly as it appeared.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Decode reads settings from a URL hash such as "#o=75&t=wr". It never
// fails: unknown keys are ignored and malformed fields keep their default.
func Decode(hash string) Settings {
	s, _ := Parse(hash)
	return s
}

// Parse is Decode that also returns the parameters it did not interpret,
// in their original order.
func Parse(hash string) (Settings, []Param) {
	s := Defaults()
	var extra []Param

	hash = strings.TrimPrefix(hash, "#")
	for _, pair := range strings.Split(hash, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")

		if !isSettingKey(rawKey) {
			extra = append(extra, Param{Key: rawKey, Value: rawValue})
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		s.decodeField(rawKey, value)
	}
	return s, extra
}

func isSettingKey(k string) bool {
	switch k {
	case KeyBackground, KeyOpacity, KeyLayers, KeyTypes, KeyFilterKey, KeyFilterVal, KeySelected:
		return true
	}
	return false
}

func (s *Settings) decodeField(key, value string) {
	switch key {
	case KeyBackground:
		if _, ok := BackgroundURL(value); ok {
			s.Background = value
		}
	case KeyOpacity:
		if o, err := strconv.Atoi(value); err == nil && o >= 0 && o <= 100 {
			s.Opacity = o
		}
	case KeyLayers:
		s.ShowBoundaries = strings.Contains(value, "b")
	case KeyTypes:
		if strings.Trim(value, "nwr") != "" {
			return
		}
		s.ShowNodes = strings.Contains(value, "n")
		s.ShowWays = strings.Contains(value, "w")
		s.ShowRelations = strings.Contains(value, "r")
	case KeyFilterKey:
		s.FilterKey = value
	case KeyFilterVal:
		s.FilterValue = value
	case KeySelected:
		if ref, err := osm.ParseRef(value); err == nil {
			s.Selected = &ref
		}
	}
}

// Encode writes the fields of s that differ from the defaults. The result
// has no leading '#'.
func Encode(s Settings) string {
	return EncodeWith(s, nil)
}

// EncodeWith is Encode keeping the uninterpreted parameters of an earlier
// hash in front of the settings.
func EncodeWith(s Settings, extra []Param) string {
	var parts []string
	for _, p := range extra {
		if isSettingKey(p.Key) {
			continue
		}
		parts = append(parts, p.Key+"="+p.Value)
	}

	def := Defaults()
	add := func(key, value, defaultValue string) {
		if value != defaultValue {
			parts = append(parts, key+"="+url.QueryEscape(value))
		}
	}
	add(KeyBackground, s.Background, def.Background)
	add(KeyOpacity, strconv.Itoa(s.Opacity), strconv.Itoa(def.Opacity))
	add(KeyLayers, s.layersString(), defaultLayers)
	add(KeyTypes, s.typesString(), defaultTypes)
	add(KeyFilterKey, s.FilterKey, "")
	add(KeyFilterVal, s.FilterValue, "")
	if s.Selected != nil {
		add(KeySelected, s.Selected.String(), "")
	}
	return strings.Join(parts, "&")
}

// Position is the map view stored in the "p" parameter as zoom/lat/lon.
type Position struct {
	Zoom float64 `json:"zoom"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// ParsePosition parses "zoom/lat/lon". Trailing bearing and pitch values are
// accepted and ignored.
func ParsePosition(v string) (Position, error) {
	parts := strings.Split(v, "/")
	if len(parts) < 3 {
		return Position{}, fmt.Errorf("map position %q: expected zoom/lat/lon", v)
	}

	var nums [3]float64
	for i := range nums {
		f, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return Position{}, fmt.Errorf("map position %q: %w", v, err)
		}
		nums[i] = f
	}

	p := Position{Zoom: nums[0], Lat: nums[1], Lon: nums[2]}
	if p.Zoom < 0 || p.Zoom > 24 || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return Position{}, fmt.Errorf("map position %q out of range", v)
	}
	return p, nil
}

// MapPosition finds the map position among uninterpreted hash parameters.
func MapPosition(extra []Param) (Position, bool) {
	for _, p := range extra {
		if p.Key != KeyPosition {
			continue
		}
		pos, err := ParsePosition(p.Value)
		if err != nil {
			return Position{}, false
		}
		return pos, true
	}
	return Position{}, false
}

// String formats the position with a precision that grows with the zoom.
func (p Position) String() string {
	precision := math.Ceil((p.Zoom*math.Ln2 + math.Log(512.0/360.0/0.5)) / math.Ln10)
	m := math.Pow(10, math.Max(0, precision))
	round := func(v, m float64) string {
		return strconv.FormatFloat(math.Round(v*m)/m, 'f', -1, 64)
	}
	return round(p.Zoom, 100) + "/" + round(p.Lat, m) + "/" + round(p.Lon, m)
}

// SetPosition replaces or adds the "p" parameter.
func SetPosition(extra []Param, pos Position) []Param {
	out := make([]Param, 0, len(extra)+1)
	found := false
	for _, p := range extra {
		if p.Key == KeyPosition {
			p.Value = pos.String()
			found = true
		}
		out = append(out, p)
	}
	if !found {
		out = append(out, Param{Key: KeyPosition, Value: pos.String()})
	}
	return out
}

// Summary is a hash split into settings, map position and the parameters
// kept for other consumers.
type Summary struct {
	Settings Settings  `json:"settings"`
	Params   []Param   `json:"params,omitempty"`
	Position *Position `json:"position,omitempty"`
	// Hash is the canonical form of the input.
	Hash string `json:"hash"`
}

// Summarize decodes hash.
func Summarize(hash string) Summary {
	s, extra := Parse(hash)
	sum := Summary{Settings: s, Params: extra, Hash: EncodeWith(s, extra)}
	if pos, ok := MapPosition(extra); ok {
		sum.Position = &pos
	}
	return sum
}

// EncodeJSON encodes a JSON settings object as a hash. Fields missing from
// data keep their defaults, unknown fields are an error. The uninterpreted
// parameters of hash are carried over.
func EncodeJSON(data []byte, hash string) (string, error) {
	s := Defaults()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return "", fmt.Errorf("settings: %w", err)
		}
	}
	if err := Validate(s); err != nil {
		return "", err
	}
	_, extra := Parse(hash)
	return EncodeWith(s, extra), nil
}
