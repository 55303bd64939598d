package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmxray/pkg/collect"
	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/josm"
	"github.com/NERVsystems/osmxray/pkg/location"
	"github.com/NERVsystems/osmxray/pkg/monitoring"
	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/selection"
	"github.com/NERVsystems/osmxray/pkg/settings"
	"github.com/NERVsystems/osmxray/pkg/tracing"
)

// handler applies one event kind. prepare runs before the session lock is
// taken and is the only place that may wait on the network; apply runs
// under the lock and must not block.
type handler struct {
	prepare func(ctx context.Context, s *Session, ev *Event) error
	apply   func(ctx context.Context, s *Session, ev Event, u *Update) error
}

var handlers = map[EventKind]handler{
	EventPointerMove:  {apply: pointerMove},
	EventPointerLeave: {apply: pointerLeave},
	EventClick:        {apply: click},
	EventKey:          {apply: key},
	EventWheel:        {apply: wheel},
	EventZoom:         {apply: zoom},
	EventSelect:       {prepare: fetchSelected, apply: selectObject},
	EventFocus:        {apply: focusEntry},
	EventSettings:     {apply: changeSettings},
	EventFilter:       {apply: filter},
	EventOpenEditor:   {prepare: openEditor, apply: editorResult},
	EventLocation:     {apply: locationMode},
}

// EventKinds lists the accepted event kinds, sorted.
func EventKinds() []EventKind {
	return slices.Sorted(maps.Keys(handlers))
}

// Dispatch applies ev and returns what the presentation layer must update.
// Invalid events are rejected with an *core.MCPError and change nothing.
func (s *Session) Dispatch(ctx context.Context, ev Event) (Update, error) {
	h, ok := handlers[ev.Kind]
	if !ok {
		names := make([]string, 0, len(handlers))
		for _, k := range EventKinds() {
			names = append(names, string(k))
		}
		monitoring.RecordEvent("unknown", 0, false)
		return Update{}, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("unknown event kind %q", ev.Kind)).
			WithSuggestions(names...)
	}

	ctx, span := tracing.StartSpan(ctx, "session.dispatch",
		trace.WithAttributes(tracing.SessionAttributes(s.id, string(ev.Kind))...),
	)
	defer span.End()

	start := time.Now()
	u, err := s.dispatch(ctx, h, ev)
	monitoring.RecordEvent(string(ev.Kind), time.Since(start), err == nil)
	if err != nil {
		tracing.Fail(span, err, "event rejected")
		s.logger.Debug("event rejected", "kind", ev.Kind, "error", err)
		return Update{}, err
	}
	span.SetStatus(codes.Ok, "")
	return u, nil
}

func (s *Session) dispatch(ctx context.Context, h handler, ev Event) (Update, error) {
	if h.prepare != nil {
		if err := h.prepare(ctx, s, &ev); err != nil {
			return Update{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()

	var u Update
	if err := h.apply(ctx, s, ev, &u); err != nil {
		return Update{}, err
	}
	s.finish(&u)
	return u, nil
}

func invalid(format string, args ...any) error {
	return core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func objectKind(ev Event) (osm.Kind, error) {
	k, err := osm.ParseKind(ev.ObjectType)
	if err != nil {
		return 0, invalid("%s: %v", ev.Kind, err)
	}
	return k, nil
}

func pointerMove(ctx context.Context, s *Session, ev Event, u *Update) error {
	kind, err := objectKind(ev)
	if err != nil {
		return err
	}
	hits := make([]collect.Hit, len(ev.Hits))
	for i, h := range ev.Hits {
		hits[i] = h.collect()
	}
	s.pointer = ev.Pointer
	s.transition(ctx, selection.PointerMove{Kind: kind, Hits: hits}, u)
	return nil
}

func pointerLeave(ctx context.Context, s *Session, ev Event, u *Update) error {
	kind, err := objectKind(ev)
	if err != nil {
		return err
	}
	s.pointer = nil
	s.transition(ctx, selection.PointerLeave{Kind: kind}, u)
	return nil
}

func click(ctx context.Context, s *Session, _ Event, u *Update) error {
	s.transition(ctx, selection.Click{}, u)
	return nil
}

func key(ctx context.Context, s *Session, ev Event, u *Update) error {
	switch ev.Key {
	case KeyEscape:
		s.transition(ctx, selection.Escape{}, u)
	case KeyPageUp:
		s.transition(ctx, selection.Navigate{Direction: -1}, u)
	case KeyPageDown:
		s.transition(ctx, selection.Navigate{Direction: 1}, u)
	}
	return nil
}

// wheel navigates the panel only while shift is held.
func wheel(ctx context.Context, s *Session, ev Event, u *Update) error {
	if !ev.Shift || ev.DeltaY == 0 {
		return nil
	}
	dir := 1
	if ev.DeltaY < 0 {
		dir = -1
	}
	s.transition(ctx, selection.Navigate{Direction: dir}, u)
	return nil
}

func zoom(ctx context.Context, s *Session, ev Event, u *Update) error {
	if ev.Zoom == nil {
		return invalid("zoom event without zoom level")
	}
	z := *ev.Zoom
	if err := core.ValidateZoom(z); err != nil {
		return invalid("%v", err)
	}
	if ev.Bounds != nil {
		if err := core.ValidateBounds(*ev.Bounds); err != nil {
			return invalid("%v", err)
		}
		s.view.Bounds = *ev.Bounds
	}

	s.view.Zoom = z
	if ev.Center != nil {
		s.view.Center = *ev.Center
		s.hasView = true
		s.store.SetPosition(settings.Position{Zoom: z, Lat: ev.Center.Lat(), Lon: ev.Center.Lon()})
	}

	below := z < MinZoomDetail
	if below == s.machine.Status().Enabled {
		s.transition(ctx, selection.ZoomCrossing{Below: below}, u)
	}
	return nil
}

func fetchSelected(ctx context.Context, s *Session, ev *Event) error {
	if ev.Ref == "" {
		return nil
	}
	ref, err := core.ParseRef(ev.Ref)
	if err != nil {
		return invalid("%v", err)
	}
	if s.deps.Objects == nil {
		return core.NewError(core.ErrServiceUnavailable, "no feature server configured").
			WithGuidance("Select an entry of the panel by index instead")
	}
	obj, err := s.deps.Objects.Fetch(ctx, ref)
	if err != nil {
		return err
	}
	ev.object = &obj
	return nil
}

// selectObject pins one object: the hover lists are replaced by it and its
// reference goes to the hash.
func selectObject(ctx context.Context, s *Session, ev Event, u *Update) error {
	obj := ev.object
	if obj == nil && ev.Index > 0 {
		o, ok := s.machine.Status().State.Sets().At(ev.Index)
		if !ok {
			return invalid("no panel entry %d", ev.Index)
		}
		obj = &o
	}

	if obj == nil {
		s.pinned = nil
		s.applySettings(s.store.Settings().WithSelected(nil), u)
		return nil
	}

	ref := obj.Ref()
	s.pinned = obj
	s.transition(ctx, selection.SingleSelect{Object: *obj}, u)
	s.applySettings(s.store.Settings().WithSelected(&ref), u)
	return nil
}

func focusEntry(ctx context.Context, s *Session, ev Event, u *Update) error {
	if ev.Index < 1 {
		return invalid("focus needs a panel entry index starting at 1, got %d", ev.Index)
	}
	s.transition(ctx, selection.Focus{Index: ev.Index}, u)
	return nil
}

func changeSettings(_ context.Context, s *Session, ev Event, u *Update) error {
	if ev.Settings == nil {
		return invalid("settings event without settings")
	}
	if err := settings.Validate(*ev.Settings); err != nil {
		return invalid("%v", err)
	}
	next := *ev.Settings
	if next.Selected == nil || s.pinned == nil || s.pinned.Ref() != *next.Selected {
		s.pinned = nil
	}
	s.applySettings(next.WithSelected(next.Selected), u)
	return nil
}

// filter sets the tag filter from a panel tag. Below MinZoomDetail the
// filter controls are disabled and the event is ignored.
func filter(_ context.Context, s *Session, ev Event, u *Update) error {
	if !s.machine.Status().Enabled {
		return nil
	}
	if ev.FilterKey == "" && ev.FilterValue != "" {
		return invalid("filter value %q without key", ev.FilterValue)
	}
	s.applySettings(s.store.Settings().WithFilter(ev.FilterKey, ev.FilterValue), u)
	return nil
}

// openEditor calls the editor without holding the session lock. A failure
// is kept on the event and turned into a notice by editorResult.
func openEditor(ctx context.Context, s *Session, ev *Event) error {
	s.mu.Lock()
	view := s.view
	s.mu.Unlock()

	if ev.Bounds != nil {
		if err := core.ValidateBounds(*ev.Bounds); err != nil {
			return invalid("%v", err)
		}
		view.Bounds = *ev.Bounds
	} else if view.Bounds == (orb.Bound{}) {
		return invalid("open-editor needs the map bounds")
	}
	if !location.EditorsAvailable(view.Zoom) {
		return invalid("editing is only available from zoom %d", location.MinZoomEditor)
	}
	if s.deps.Editor == nil {
		ev.editorErr = core.NewError(core.ErrServiceUnavailable, "no editor configured").WithGuidance(josm.Notice)
		return nil
	}
	ev.editorErr = s.deps.Editor.LoadAndZoom(ctx, view.Bounds)
	return nil
}

func editorResult(_ context.Context, s *Session, ev Event, u *Update) error {
	if ev.editorErr == nil {
		return nil
	}
	u.Notice = josm.Notice
	var mcpErr *core.MCPError
	if errors.As(ev.editorErr, &mcpErr) && mcpErr.Guidance != "" {
		u.Notice = mcpErr.Guidance
	}
	s.logger.Info("editor unavailable", "error", ev.editorErr)
	return nil
}

func locationMode(_ context.Context, s *Session, ev Event, _ *Update) error {
	mode, err := location.ParseMode(ev.Mode)
	if err != nil {
		return invalid("%v", err)
	}
	sys, err := location.ParseSystem(ev.System)
	if err != nil {
		return invalid("%v", err)
	}
	s.mode, s.system = mode, sys
	return nil
}
