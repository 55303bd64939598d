package settings

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/NERVsystems/osmxray/pkg/osm"
)

// EmptySelectedSource is the data URL used when nothing is pinned.
const EmptySelectedSource = `data:,{"type":"FeatureCollection","features":[]}`

var backgrounds = map[string]string{
	"none":  "",
	"osm":   "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
	"osmde": "https://tile.openstreetmap.de/{z}/{x}/{y}.png",
}

// BackgroundURL returns the raster tile template for a background id.
// The "none" background has an empty template.
func BackgroundURL(id string) (string, bool) {
	u, ok := backgrounds[id]
	return u, ok
}

// Backgrounds returns the known background ids, sorted.
func Backgrounds() []string {
	ids := make([]string, 0, len(backgrounds))
	for id := range backgrounds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate rejects values a user could not have produced through the
// settings controls.
func Validate(s Settings) error {
	if _, ok := BackgroundURL(s.Background); !ok {
		return fmt.Errorf("unknown background %q (available: %s)", s.Background, strings.Join(Backgrounds(), ", "))
	}
	if s.Opacity < 0 || s.Opacity > 100 {
		return fmt.Errorf("opacity %d outside 0..100", s.Opacity)
	}
	if s.Selected != nil && !s.Selected.Kind.Valid() {
		return fmt.Errorf("invalid selected object kind %d", s.Selected.Kind)
	}
	return nil
}

// Config locates the tile server and the feature server.
type Config struct {
	TilePrefix    string
	FeatureServer string
}

// DefaultConfig returns the public test servers.
func DefaultConfig() Config {
	return Config{
		TilePrefix:    "http://test.osm2pgsql.org/",
		FeatureServer: "http://test.osm2pgsql.org:9000/",
	}
}

// TileURL returns the vector tile template for the enabled kinds and filter.
func (c Config) TileURL(s Settings) string {
	q := url.Values{}
	if s.FilterKey != "" {
		q.Set("key", s.FilterKey)
	}
	if s.FilterValue != "" {
		q.Set("value", s.FilterValue)
	}
	return c.TilePrefix + "tiles/detail/" + strings.Join(s.Layers(), ",") + "/{z}/{x}/{y}.pbf?" + q.Encode()
}

// SelectedSourceURL returns where the pinned object's geometry is loaded
// from.
func (c Config) SelectedSourceURL(s Settings) string {
	if s.Selected == nil {
		return EmptySelectedSource
	}
	return ObjectURL(c.FeatureServer, *s.Selected)
}

// ObjectURL returns the feature server items URL for one object.
func ObjectURL(featureServer string, ref osm.Ref) string {
	return strings.TrimSuffix(featureServer, "/") + "/functions/postgisftw." + ref.Kind.Long() +
		"/items?osm_id=" + strconv.FormatUint(ref.ID, 10)
}

// ActionType names one side effect on the rendered map.
type ActionType string

const (
	ActionBackground      ActionType = "background"
	ActionOpacity         ActionType = "opacity"
	ActionLayerVisibility ActionType = "layer-visibility"
	ActionReloadSources   ActionType = "reload-sources"
	ActionReloadSelected  ActionType = "reload-selected"
)

// Action is one side effect the presentation layer must perform.
type Action struct {
	Type    ActionType `json:"type"`
	Layer   string     `json:"layer,omitempty"`
	Visible bool       `json:"visible"`
	URL     string     `json:"url,omitempty"`
	Opacity float64    `json:"opacity"`
}

var boundaryLayers = []string{
	"boundaries-2-core", "boundaries-2-casing",
	"boundaries-4-core", "boundaries-4-casing",
}

func lowLayer(k osm.Kind) string {
	return "osm_" + k.Layer() + "_low"
}

// Store owns the current settings and the hash parameters it does not
// interpret. Every change goes through Apply.
type Store struct {
	cfg     Config
	current Settings
	extra   []Param
}

// NewStore creates a store from a URL hash.
func NewStore(cfg Config, hash string) *Store {
	s, extra := Parse(hash)
	return &Store{cfg: cfg, current: s, extra: extra}
}

// Settings returns the current settings.
func (st *Store) Settings() Settings {
	return st.current
}

// Config returns the server locations.
func (st *Store) Config() Config {
	return st.cfg
}

// Hash returns the current URL hash, without the leading '#'.
func (st *Store) Hash() string {
	return EncodeWith(st.current, st.extra)
}

// Position returns the map position carried in the hash, if any.
func (st *Store) Position() (Position, bool) {
	return MapPosition(st.extra)
}

// SetPosition records the map view in the hash.
func (st *Store) SetPosition(p Position) {
	st.extra = SetPosition(st.extra, p)
}

// Apply replaces the settings and returns the side effects, one per
// changed concern. Changing only the opacity never reloads the tile source.
func (st *Store) Apply(next Settings) []Action {
	old := st.current
	st.current = next
	return st.plan(next, Diff(old, next))
}

// Initial returns the actions that bring a fresh map in line with the
// current settings.
func (st *Store) Initial() []Action {
	s := st.current
	actions := []Action{st.backgroundAction(s), {Type: ActionOpacity, Opacity: opacity(s)}}
	for _, l := range boundaryLayers {
		actions = append(actions, Action{Type: ActionLayerVisibility, Layer: l, Visible: s.ShowBoundaries})
	}
	for _, k := range osm.Kinds {
		actions = append(actions, Action{Type: ActionLayerVisibility, Layer: lowLayer(k), Visible: s.ShowKind(k)})
	}
	return append(actions,
		Action{Type: ActionReloadSources, URL: st.cfg.TileURL(s)},
		Action{Type: ActionReloadSelected, URL: st.cfg.SelectedSourceURL(s)},
	)
}

func (st *Store) plan(next Settings, fields []Field) []Action {
	var actions []Action
	reload := false
	for _, f := range fields {
		switch f {
		case FieldBackground:
			actions = append(actions, st.backgroundAction(next))
		case FieldOpacity:
			actions = append(actions, Action{Type: ActionOpacity, Opacity: opacity(next)})
		case FieldBoundaries:
			for _, l := range boundaryLayers {
				actions = append(actions, Action{Type: ActionLayerVisibility, Layer: l, Visible: next.ShowBoundaries})
			}
			reload = true
		case FieldNodes, FieldWays, FieldRelations:
			k := kindOfField(f)
			actions = append(actions, Action{Type: ActionLayerVisibility, Layer: lowLayer(k), Visible: next.ShowKind(k)})
			reload = true
		case FieldFilter:
			reload = true
		case FieldSelected:
			actions = append(actions, Action{Type: ActionReloadSelected, URL: st.cfg.SelectedSourceURL(next)})
		}
	}
	if reload {
		actions = append(actions, Action{Type: ActionReloadSources, URL: st.cfg.TileURL(next)})
	}
	return actions
}

func (st *Store) backgroundAction(s Settings) Action {
	u, _ := BackgroundURL(s.Background)
	return Action{Type: ActionBackground, Visible: u != "", URL: u}
}

func opacity(s Settings) float64 {
	return float64(s.Opacity) / 100
}

func kindOfField(f Field) osm.Kind {
	switch f {
	case FieldWays:
		return osm.Way
	case FieldRelations:
		return osm.Relation
	}
	return osm.Node
}
