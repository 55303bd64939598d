package selection

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NERVsystems/osmxray/pkg/collect"
	"github.com/NERVsystems/osmxray/pkg/osm"
)

func hits(ids ...uint64) []collect.Hit {
	out := make([]collect.Hit, len(ids))
	for i, id := range ids {
		out[i] = collect.Hit{ID: id, Properties: map[string]any{}}
	}
	return out
}

func refs(objs []osm.GeoObject) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.ShortID()
	}
	return out
}

func enabledIdle() Status {
	return Status{State: Idle{}, Enabled: true}
}

// run applies events in order and returns the final status.
func run(st Status, events ...Event) Status {
	for _, ev := range events {
		st, _ = Transition(st, ev)
	}
	return st
}

func TestPointerMoveOrdersByKind(t *testing.T) {
	st := run(enabledIdle(),
		PointerMove{Kind: osm.Way, Hits: hits(7, 7)},
		PointerMove{Kind: osm.Node, Hits: hits(3)},
	)

	h, ok := st.State.(Hovering)
	if !ok {
		t.Fatalf("expected Hovering, got %T", st.State)
	}
	if diff := cmp.Diff([]string{"n3", "w7"}, refs(h.Objects.All())); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if h.Current != 1 {
		t.Errorf("expected index 1, got %d", h.Current)
	}
}

func TestPointerMoveEffects(t *testing.T) {
	_, effects := Transition(enabledIdle(), PointerMove{Kind: osm.Way, Hits: hits(2, 1)})

	if len(effects) != 3 {
		t.Fatalf("expected 3 effects, got %d: %#v", len(effects), effects)
	}
	hover, ok := effects[0].(SetHover)
	if !ok || hover.Kind != osm.Way || len(hover.Objects) != 2 {
		t.Errorf("unexpected first effect %#v", effects[0])
	}
	if effects[1] != (PushSelection{Index: 1}) || effects[2] != (FocusEntry{Index: 1}) {
		t.Errorf("unexpected selection effects %#v", effects[1:])
	}
}

func TestPointerMoveEmptyGoesIdle(t *testing.T) {
	st := run(enabledIdle(),
		PointerMove{Kind: osm.Way, Hits: hits(1)},
		PointerMove{Kind: osm.Way, Hits: nil},
	)
	if _, ok := st.State.(Idle); !ok {
		t.Errorf("expected Idle, got %T", st.State)
	}
}

func TestLockedIgnoresPointer(t *testing.T) {
	locked := run(enabledIdle(),
		PointerMove{Kind: osm.Way, Hits: hits(7)},
		Click{},
	)
	if !IsLocked(locked.State) {
		t.Fatalf("expected Locked, got %T", locked.State)
	}

	for _, ev := range []Event{
		PointerMove{Kind: osm.Way, Hits: hits(8, 9)},
		PointerMove{Kind: osm.Node, Hits: hits(1)},
		PointerLeave{Kind: osm.Way},
	} {
		next, effects := Transition(locked, ev)
		if len(effects) != 0 {
			t.Errorf("%T produced effects while locked: %#v", ev, effects)
		}
		if diff := cmp.Diff(locked, next); diff != "" {
			t.Errorf("%T changed locked state (-want +got):\n%s", ev, diff)
		}
	}
}

func TestClickWithoutObjectsDoesNotLock(t *testing.T) {
	st, effects := Transition(enabledIdle(), Click{})
	if IsLocked(st.State) {
		t.Error("click on empty selection must not lock")
	}
	if len(effects) != 0 {
		t.Errorf("unexpected effects %#v", effects)
	}
}

func TestClickTogglesLock(t *testing.T) {
	st := run(enabledIdle(), PointerMove{Kind: osm.Relation, Hits: hits(5)}, Click{})
	if !IsLocked(st.State) {
		t.Fatalf("expected Locked, got %T", st.State)
	}

	st, effects := Transition(st, Click{})
	if _, ok := st.State.(Idle); !ok {
		t.Errorf("second click should unlock and clear, got %T", st.State)
	}
	want := []Effect{ClearKind{Kind: osm.Node}, ClearKind{Kind: osm.Way}, ClearKind{Kind: osm.Relation}}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestEscapeAlwaysClears(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		st := Status{State: Hovering{Objects: Sets{Ways: []osm.GeoObject{{Kind: osm.Way, ID: 1}}}, Current: 1}, Enabled: enabled}
		next, _ := Transition(st, Escape{})
		if _, ok := next.State.(Idle); !ok {
			t.Errorf("enabled=%v: expected Idle after Escape, got %T", enabled, next.State)
		}
		if next.Enabled != enabled {
			t.Errorf("Escape must not change enabled flag")
		}
	}
}

func TestNavigateClamps(t *testing.T) {
	st := run(enabledIdle(), PointerMove{Kind: osm.Way, Hits: hits(1, 2, 3)})
	total := st.State.Sets().Total()

	for i := 0; i < total+2; i++ {
		st, _ = Transition(st, Navigate{Direction: 1})
	}
	if st.State.Index() != total {
		t.Errorf("expected index %d after navigating up, got %d", total, st.State.Index())
	}

	for i := 0; i < total+2; i++ {
		st, _ = Transition(st, Navigate{Direction: -1})
	}
	if st.State.Index() != 1 {
		t.Errorf("expected index 1 after navigating down, got %d", st.State.Index())
	}
}

func TestNavigateEffects(t *testing.T) {
	st := run(enabledIdle(), PointerMove{Kind: osm.Way, Hits: hits(1, 2)})
	_, effects := Transition(st, Navigate{Direction: 1})
	want := []Effect{PushSelection{Index: 2}, FocusEntry{Index: 2}}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}

	_, effects = Transition(enabledIdle(), Navigate{Direction: 1})
	if len(effects) != 0 {
		t.Errorf("navigating an empty selection should do nothing, got %#v", effects)
	}
}

func TestNavigateWhileLockedKeepsLock(t *testing.T) {
	st := run(enabledIdle(), PointerMove{Kind: osm.Way, Hits: hits(1, 2)}, Click{}, Navigate{Direction: 1})
	l, ok := st.State.(Locked)
	if !ok {
		t.Fatalf("expected Locked, got %T", st.State)
	}
	if l.Current != 2 {
		t.Errorf("expected index 2, got %d", l.Current)
	}
}

func TestFocusClamps(t *testing.T) {
	st := run(enabledIdle(), PointerMove{Kind: osm.Node, Hits: hits(1, 2, 3)})
	tests := map[int]int{2: 2, 0: 1, -4: 1, 99: 3}
	for in, want := range tests {
		next, _ := Transition(st, Focus{Index: in})
		if next.State.Index() != want {
			t.Errorf("Focus(%d) gave index %d, want %d", in, next.State.Index(), want)
		}
	}
}

func TestPointerLeaveClampsIndex(t *testing.T) {
	st := run(enabledIdle(),
		PointerMove{Kind: osm.Node, Hits: hits(1)},
		PointerMove{Kind: osm.Way, Hits: hits(2, 3)},
		Navigate{Direction: 1},
		Navigate{Direction: 1},
	)
	if st.State.Index() != 3 {
		t.Fatalf("setup: expected index 3, got %d", st.State.Index())
	}

	st, effects := Transition(st, PointerLeave{Kind: osm.Way})
	if st.State.Index() != 1 {
		t.Errorf("expected index clamped to 1, got %d", st.State.Index())
	}
	want := []Effect{ClearKind{Kind: osm.Way}, PushSelection{Index: 1}}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}

	st, _ = Transition(st, PointerLeave{Kind: osm.Node})
	if _, ok := st.State.(Idle); !ok {
		t.Errorf("expected Idle when all kinds are empty, got %T", st.State)
	}
}

func TestZoomCrossingWhileLocked(t *testing.T) {
	st := run(enabledIdle(),
		PointerMove{Kind: osm.Way, Hits: hits(7)},
		PointerMove{Kind: osm.Node, Hits: hits(3)},
		Click{},
	)
	if !IsLocked(st.State) || st.State.Sets().Total() != 2 {
		t.Fatalf("setup: expected 2 locked objects, got %T with %d", st.State, st.State.Sets().Total())
	}

	st, _ = Transition(st, ZoomCrossing{Below: true})
	if IsLocked(st.State) {
		t.Error("lock must be released below the detail zoom")
	}
	if st.Enabled {
		t.Error("pointer input must be disabled below the detail zoom")
	}
	if st.State.Sets().Total() != 2 {
		t.Errorf("selection should be kept, got %d objects", st.State.Sets().Total())
	}

	// Disabled: pointer input and clicks are ignored.
	next, effects := Transition(st, PointerMove{Kind: osm.Way, Hits: hits(9)})
	if len(effects) != 0 || next.State.Sets().Total() != 2 {
		t.Error("pointer move must be ignored while disabled")
	}
	next, _ = Transition(st, Click{})
	if IsLocked(next.State) {
		t.Error("click must not lock while disabled")
	}

	st, _ = Transition(st, ZoomCrossing{Below: false})
	if !st.Enabled {
		t.Error("crossing back above the threshold must enable pointer input")
	}
	if st.State.Sets().Total() != 2 {
		t.Error("selection should survive zooming back in")
	}
}

func TestSingleSelectKeepsLockMode(t *testing.T) {
	obj := osm.GeoObject{Kind: osm.Relation, ID: 42}

	st := run(enabledIdle(), PointerMove{Kind: osm.Way, Hits: hits(1, 2)}, Click{})
	st, effects := Transition(st, SingleSelect{Object: obj})
	l, ok := st.State.(Locked)
	if !ok {
		t.Fatalf("expected Locked, got %T", st.State)
	}
	if diff := cmp.Diff([]string{"r42"}, refs(l.Objects.All())); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}
	if l.Current != 1 {
		t.Errorf("expected index 1, got %d", l.Current)
	}
	if len(effects) != 5 {
		t.Errorf("expected 3 clears, selection and focus, got %#v", effects)
	}

	st, _ = Transition(enabledIdle(), SingleSelect{Object: obj})
	if _, ok := st.State.(Hovering); !ok {
		t.Errorf("expected Hovering when unlocked, got %T", st.State)
	}
}

func TestIndexInvariant(t *testing.T) {
	events := []Event{
		PointerMove{Kind: osm.Way, Hits: hits(5, 1, 5)},
		Navigate{Direction: 1},
		Navigate{Direction: 1},
		PointerMove{Kind: osm.Node, Hits: hits(2)},
		Focus{Index: 3},
		PointerLeave{Kind: osm.Way},
		Click{},
		Navigate{Direction: -1},
		ZoomCrossing{Below: true},
		Navigate{Direction: 1},
		ZoomCrossing{Below: false},
		PointerLeave{Kind: osm.Node},
		Escape{},
	}

	st := enabledIdle()
	for i, ev := range events {
		st, _ = Transition(st, ev)
		idx, total := st.State.Index(), st.State.Sets().Total()
		if idx < 0 || idx > total {
			t.Fatalf("step %d (%T): index %d out of range 0..%d", i, ev, idx, total)
		}
		if total > 0 && idx == 0 {
			t.Fatalf("step %d (%T): no current entry with %d objects", i, ev, total)
		}
	}
}
