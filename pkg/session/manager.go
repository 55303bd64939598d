package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/monitoring"
	"github.com/NERVsystems/osmxray/pkg/settings"
)

// ManagerConfig bounds the live sessions.
type ManagerConfig struct {
	// TTL is how long a session survives without events.
	TTL         time.Duration
	MaxSessions int
}

// DefaultManagerConfig returns the default session limits.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TTL:         30 * time.Minute,
		MaxSessions: 1000,
	}
}

// Eviction reasons reported to metrics.
const (
	EvictClosed   = "closed"
	EvictExpired  = "expired"
	EvictCapacity = "capacity"
)

// Manager owns the live sessions. It is safe for concurrent use.
type Manager struct {
	cfg    ManagerConfig
	deps   Deps
	logger *slog.Logger

	// closed holds ids removed through Close until the eviction callback
	// has seen them.
	closedMu sync.Mutex
	closed   map[string]bool

	sessions *expirable.LRU[string, *Session]
}

// NewManager creates an empty manager.
func NewManager(cfg ManagerConfig, deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 1
	}
	m := &Manager{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "session_manager"),
		closed: make(map[string]bool),
	}
	m.sessions = expirable.NewLRU[string, *Session](cfg.MaxSessions, m.onEvict, cfg.TTL)
	return m
}

// onEvict runs with the cache lock held and must not call back into it.
func (m *Manager) onEvict(id string, s *Session) {
	m.closedMu.Lock()
	closed := m.closed[id]
	delete(m.closed, id)
	m.closedMu.Unlock()

	reason := EvictCapacity
	switch {
	case closed:
		reason = EvictClosed
	case m.cfg.TTL > 0 && time.Since(s.LastUsed()) >= m.cfg.TTL:
		reason = EvictExpired
	}
	monitoring.RecordSessionEvicted(reason)
	m.logger.Info("session ended", "session", id, "reason", reason)
}

// Create starts a session from a URL hash. A nil zoom takes the zoom of
// the map position in the hash, or 0 when there is none. The returned
// update carries the full initial settings action list.
func (m *Manager) Create(ctx context.Context, hash string, zoom *float64) (*Session, Update, error) {
	z := 0.0
	switch {
	case zoom != nil:
		z = *zoom
	default:
		_, extra := settings.Parse(hash)
		if pos, ok := settings.MapPosition(extra); ok {
			z = pos.Zoom
		}
	}
	if err := core.ValidateZoom(z); err != nil {
		return nil, Update{}, core.NewValidationError(core.ErrInvalidZoom, err.Error())
	}

	id := uuid.NewString()
	s := New(id, hash, z, m.deps)
	notice := s.Restore(ctx)

	m.sessions.Add(id, s)
	m.report()
	m.logger.Info("session created", "session", id, "zoom", z, "hash", s.store.Hash())

	u := s.Initial()
	u.Notice = notice
	return s, u, nil
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, core.NewError(core.ErrNotFound, fmt.Sprintf("session %q not found", id)).
			WithGuidance("The session expired or was closed. Create a new one")
	}
	// Re-adding resets the expiry.
	m.sessions.Add(id, s)
	return s, nil
}

// Dispatch applies an event to session id.
func (m *Manager) Dispatch(ctx context.Context, id string, ev Event) (Update, error) {
	s, err := m.Get(id)
	if err != nil {
		return Update{}, err
	}
	return s.Dispatch(ctx, ev)
}

// Close ends a session. Closing an unknown session is an error.
func (m *Manager) Close(id string) error {
	m.closedMu.Lock()
	m.closed[id] = true
	m.closedMu.Unlock()

	if !m.sessions.Remove(id) {
		m.closedMu.Lock()
		delete(m.closed, id)
		m.closedMu.Unlock()
		return core.NewError(core.ErrNotFound, fmt.Sprintf("session %q not found", id))
	}
	m.report()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Purge ends all sessions.
func (m *Manager) Purge() {
	m.sessions.Purge()
	m.report()
}

func (m *Manager) report() {
	monitoring.SetActiveSessions(m.sessions.Len())
}
