// Package session ties one viewer's settings, selection state machine,
// feature-state sync and panel together and dispatches the events of its
// presentation layer.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmxray/pkg/featurestate"
	"github.com/NERVsystems/osmxray/pkg/location"
	"github.com/NERVsystems/osmxray/pkg/monitoring"
	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/panel"
	"github.com/NERVsystems/osmxray/pkg/selection"
	"github.com/NERVsystems/osmxray/pkg/settings"
	"github.com/NERVsystems/osmxray/pkg/tracing"
)

// MinZoomDetail is the lowest zoom with pointer input and tag filtering.
const MinZoomDetail = 14

// Fetcher loads a single object by reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref osm.Ref) (osm.GeoObject, error)
}

// Editor opens an area in an external editor.
type Editor interface {
	LoadAndZoom(ctx context.Context, b orb.Bound) error
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Settings settings.Config
	// Objects restores pinned selections. May be nil.
	Objects Fetcher
	// Editor may be nil, open-editor events then fail.
	Editor    Editor
	EditorURL string
	Logger    *slog.Logger
}

// Session is the state of one viewer. Events are applied one at a time.
type Session struct {
	id     string
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	store    *settings.Store
	recorder *featurestate.Recorder
	machine  *selection.Machine
	view     location.View
	hasView  bool
	mode     location.Mode
	system   location.System
	pointer  *orb.Point
	pinned   *osm.GeoObject
	lastUsed time.Time
}

// New creates a session from a URL hash. zoom is the initial map zoom;
// the map position in the hash, if any, provides the center.
func New(id, hash string, zoom float64, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rec := featurestate.NewRecorder()
	s := &Session{
		id:       id,
		deps:     deps,
		logger:   deps.Logger.With("component", "session", "session", id),
		store:    settings.NewStore(deps.Settings, hash),
		recorder: rec,
		machine:  selection.NewMachine(featurestate.New(rec), zoom >= MinZoomDetail),
		mode:     location.ModeMouse,
		system:   location.LonLat,
		lastUsed: time.Now(),
	}
	s.view.Zoom = zoom
	if pos, ok := s.store.Position(); ok {
		s.view.Center = orb.Point{pos.Lon, pos.Lat}
		s.hasView = true
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// LastUsed returns the time of the last event.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Restore fetches the object pinned in the hash so the first update can
// show it. A failed fetch keeps the pin and is reported as a notice.
func (s *Session) Restore(ctx context.Context) string {
	s.mu.Lock()
	sel := s.store.Settings().Selected
	s.mu.Unlock()
	if sel == nil || s.deps.Objects == nil {
		return ""
	}

	obj, err := s.deps.Objects.Fetch(ctx, *sel)
	if err != nil {
		s.logger.Warn("could not restore pinned object", "object", sel.String(), "error", err)
		return "Could not load pinned object " + sel.String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.store.Settings().Selected; cur != nil && *cur == obj.Ref() {
		s.pinned = &obj
	}
	return ""
}

// Initial returns the update that sets up a fresh map: the full settings
// action list and the current panel.
func (s *Session) Initial() Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := Update{Actions: s.store.Initial()}
	s.finish(&u)
	return u
}

// State returns the current panel and hash without changing anything.
func (s *Session) State() Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u Update
	s.finish(&u)
	return u
}

// transition runs ev through the state machine.
func (s *Session) transition(ctx context.Context, ev selection.Event, u *Update) {
	res := s.machine.Apply(ev)
	monitoring.RecordTransition(res.From, res.To)
	if res.Focus > 0 {
		u.Focus = res.Focus
	}
	total := s.machine.Status().State.Sets().Total()
	tracing.SetAttributes(ctx, tracing.TransitionAttributes(res.From, res.To, total)...)
	if res.From != res.To {
		s.logger.Debug("selection changed", "from", res.From, "to", res.To, "objects", total)
	}
}

// applySettings routes every settings change through the store.
func (s *Session) applySettings(next settings.Settings, u *Update) {
	u.Actions = append(u.Actions, s.store.Apply(next)...)
}

// finish fills the parts of u derived from the committed state. Feature
// state ops are drained only here, after the transition has committed.
func (s *Session) finish(u *Update) {
	u.Session = s.id
	u.Panel = panel.Render(s.machine.Status())
	u.Ops = s.recorder.Drain()
	for _, op := range u.Ops {
		monitoring.RecordFeatureStateOp(string(op.Type))
	}
	u.Settings = s.store.Settings()
	u.Hash = s.store.Hash()

	if s.pinned != nil {
		e := panel.Pinned(*s.pinned)
		u.Pinned = &e
	}
	if s.hasView {
		links := location.LinksFor(s.view, s.deps.EditorURL)
		u.Links = &links
		u.Location = location.Describe(s.mode, s.system, s.view, s.pointer)
	}
}
