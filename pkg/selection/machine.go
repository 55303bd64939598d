package selection

import (
	"github.com/NERVsystems/osmxray/pkg/featurestate"
)

// Machine holds the committed status and applies the effects of each
// transition to the feature-state store. It is not safe for concurrent use;
// callers deliver one event at a time.
type Machine struct {
	status Status
	sync   *featurestate.Sync
}

// Result describes what one event did.
type Result struct {
	From, To string
	// Focus is the entry the panel should scroll to, 0 for none.
	Focus   int
	Effects int
}

// NewMachine creates an idle machine. enabled tells whether the map starts
// at a zoom level with pointer input.
func NewMachine(sync *featurestate.Sync, enabled bool) *Machine {
	return &Machine{
		status: Status{State: Idle{}, Enabled: enabled},
		sync:   sync,
	}
}

// Status returns the committed status.
func (m *Machine) Status() Status {
	return m.status
}

// Apply runs the transition for ev. The new status is committed before any
// feature flag is written.
func (m *Machine) Apply(ev Event) Result {
	prev := m.status
	next, effects := Transition(prev, ev)
	m.status = next

	res := Result{From: Name(prev.State), To: Name(next.State), Effects: len(effects)}
	for _, eff := range effects {
		switch e := eff.(type) {
		case ClearKind:
			m.sync.ClearAll(e.Kind)
		case SetHover:
			m.sync.ReplaceHover(e.Kind, e.Objects)
		case PushSelection:
			m.sync.Select(next.State.Sets().All(), e.Index)
		case FocusEntry:
			res.Focus = e.Index
		}
	}
	return res
}
