package selection

import (
	"github.com/NERVsystems/osmxray/pkg/collect"
	"github.com/NERVsystems/osmxray/pkg/osm"
)

// Event is an input to the state machine.
type Event interface{ isEvent() }

// PointerMove reports the raw hits of one kind under the pointer.
type PointerMove struct {
	Kind osm.Kind
	Hits []collect.Hit
}

// PointerLeave reports that the pointer left all features of one kind.
type PointerLeave struct{ Kind osm.Kind }

// Click toggles the lock.
type Click struct{}

// Escape releases the lock and clears everything.
type Escape struct{}

// Navigate moves the current entry up (Direction > 0) or down (< 0).
type Navigate struct{ Direction int }

// Focus makes entry Index current.
type Focus struct{ Index int }

// ZoomCrossing reports that the map crossed the detail zoom threshold.
type ZoomCrossing struct{ Below bool }

// SingleSelect replaces the hovered objects with one object.
type SingleSelect struct{ Object osm.GeoObject }

func (PointerMove) isEvent()  {}
func (PointerLeave) isEvent() {}
func (Click) isEvent()        {}
func (Escape) isEvent()       {}
func (Navigate) isEvent()     {}
func (Focus) isEvent()        {}
func (ZoomCrossing) isEvent() {}
func (SingleSelect) isEvent() {}

// Effect is a side effect to run once the new state is committed.
type Effect interface{ isEffect() }

// ClearKind removes all feature flags of a kind.
type ClearKind struct{ Kind osm.Kind }

// SetHover flags the objects of one kind as hovered.
type SetHover struct {
	Kind    osm.Kind
	Objects []osm.GeoObject
}

// PushSelection flags the entry at Index as the only selected one.
type PushSelection struct{ Index int }

// FocusEntry asks the presentation layer to scroll to an entry.
type FocusEntry struct{ Index int }

func (ClearKind) isEffect()     {}
func (SetHover) isEffect()      {}
func (PushSelection) isEffect() {}
func (FocusEntry) isEffect()    {}

// Transition computes the next status for an event. It never fails; events
// that do not apply to the current status leave it unchanged and return no
// effects.
func Transition(cur Status, ev Event) (Status, []Effect) {
	switch e := ev.(type) {
	case PointerMove:
		return pointerMove(cur, e)
	case PointerLeave:
		return pointerLeave(cur, e)
	case Click:
		return click(cur)
	case Escape:
		return clearAll(cur)
	case Navigate:
		return navigate(cur, e.Direction)
	case Focus:
		return focus(cur, e.Index)
	case ZoomCrossing:
		return zoomCrossing(cur, e.Below)
	case SingleSelect:
		return singleSelect(cur, e.Object)
	}
	return cur, nil
}

func pointerMove(cur Status, e PointerMove) (Status, []Effect) {
	if !cur.Enabled || IsLocked(cur.State) || !e.Kind.Valid() {
		return cur, nil
	}

	objs := collect.Collect(e.Kind, e.Hits)
	sets := cur.State.Sets().With(e.Kind, objs)
	next := Status{State: unlocked(sets, 1), Enabled: true}

	effects := []Effect{SetHover{Kind: e.Kind, Objects: objs}}
	if next.State.Index() > 0 {
		effects = append(effects, PushSelection{Index: 1}, FocusEntry{Index: 1})
	}
	return next, effects
}

func pointerLeave(cur Status, e PointerLeave) (Status, []Effect) {
	if !cur.Enabled || IsLocked(cur.State) || !e.Kind.Valid() {
		return cur, nil
	}

	sets := cur.State.Sets().With(e.Kind, nil)
	next := Status{State: unlocked(sets, cur.State.Index()), Enabled: true}

	effects := []Effect{ClearKind{Kind: e.Kind}}
	if idx := next.State.Index(); idx > 0 {
		effects = append(effects, PushSelection{Index: idx})
	}
	return next, effects
}

func click(cur Status) (Status, []Effect) {
	if !cur.Enabled {
		return cur, nil
	}
	switch st := cur.State.(type) {
	case Locked:
		return clearAll(cur)
	case Hovering:
		if st.Objects.Total() > 0 {
			return Status{State: Locked(st), Enabled: cur.Enabled}, nil
		}
	}
	return cur, nil
}

func clearAll(cur Status) (Status, []Effect) {
	effects := make([]Effect, 0, len(osm.Kinds))
	for _, k := range osm.Kinds {
		effects = append(effects, ClearKind{Kind: k})
	}
	return Status{State: Idle{}, Enabled: cur.Enabled}, effects
}

func navigate(cur Status, direction int) (Status, []Effect) {
	idx := cur.State.Index()
	total := cur.State.Sets().Total()
	if total == 0 {
		return cur, nil
	}

	switch {
	case direction > 0 && idx < total:
		idx++
	case direction < 0 && idx > 1:
		idx--
	}
	return withIndex(cur, idx)
}

func focus(cur Status, index int) (Status, []Effect) {
	total := cur.State.Sets().Total()
	if total == 0 {
		return cur, nil
	}
	return withIndex(cur, clamp(index, 1, total))
}

func withIndex(cur Status, idx int) (Status, []Effect) {
	var st State
	switch s := cur.State.(type) {
	case Hovering:
		s.Current = idx
		st = s
	case Locked:
		s.Current = idx
		st = s
	default:
		return cur, nil
	}
	return Status{State: st, Enabled: cur.Enabled}, []Effect{PushSelection{Index: idx}, FocusEntry{Index: idx}}
}

func zoomCrossing(cur Status, below bool) (Status, []Effect) {
	if !below {
		return Status{State: cur.State, Enabled: true}, nil
	}
	st := cur.State
	if l, ok := st.(Locked); ok {
		st = Hovering(l)
	}
	return Status{State: st, Enabled: false}, nil
}

func singleSelect(cur Status, obj osm.GeoObject) (Status, []Effect) {
	if !obj.Kind.Valid() {
		return cur, nil
	}

	sets := Sets{}.With(obj.Kind, []osm.GeoObject{obj})
	var st State = Hovering{Objects: sets, Current: 1}
	if IsLocked(cur.State) {
		st = Locked{Objects: sets, Current: 1}
	}

	effects := make([]Effect, 0, len(osm.Kinds)+2)
	for _, k := range osm.Kinds {
		effects = append(effects, ClearKind{Kind: k})
	}
	effects = append(effects, PushSelection{Index: 1}, FocusEntry{Index: 1})
	return Status{State: st, Enabled: cur.Enabled}, effects
}
