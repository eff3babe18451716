package dialogue

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by [Manager.Get] for unknown session IDs.
var ErrSessionNotFound = errors.New("dialogue: session not found")

// defaultIdleTTL is how long a session may go without activity before the
// manager evicts it.
const defaultIdleTTL = 30 * time.Minute

// Manager owns the set of open sessions for this process. One widget
// instance maps to one session; sessions are single-owner and never shared
// across widget instances. All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*managed
	seq      int
	idleTTL  time.Duration
}

type managed struct {
	session  *Session
	lastSeen time.Time
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithIdleTTL overrides how long an inactive session survives before
// eviction. Zero or negative disables eviction.
func WithIdleTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.idleTTL = ttl
	}
}

// NewManager creates a [Manager] whose sessions share cfg.
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg,
		sessions: map[string]*managed{},
		idleTTL:  defaultIdleTTL,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create opens a new session with a process-unique, time-based identifier.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("s%d-%d", time.Now().UnixMilli(), m.seq)
	m.mu.Unlock()

	// NewSession touches the recorder and metrics; keep it outside the
	// manager lock.
	s := NewSession(id, m.cfg)

	m.mu.Lock()
	m.sessions[id] = &managed{session: s, lastSeen: time.Now()}
	m.mu.Unlock()
	return s
}

// Get returns the session with the given ID and refreshes its idle clock.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	entry.lastSeen = time.Now()
	return entry.session, nil
}

// Remove closes and forgets the session with the given ID. Removing an
// unknown ID is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		entry.session.Close()
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes every session that has been inactive longer than the idle
// TTL and returns how many were evicted. Intended to be called periodically
// by the server.
func (m *Manager) EvictIdle() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	var stale []*managed
	for id, entry := range m.sessions {
		if entry.lastSeen.Before(cutoff) {
			stale = append(stale, entry)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, entry := range stale {
		slog.Info("dialogue: evicting idle session", "session_id", entry.session.ID())
		entry.session.Close()
	}
	return len(stale)
}
