package selector

import (
	"context"
	"sync"
	"time"

	"github.com/creativeops/thumbselect/internal/metrics"
	"github.com/creativeops/thumbselect/pkg/models"
)

// Manager holds the open sessions for the hosting process. Sessions exist
// only in memory; durability is the Record Store's job once a save lands.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     Deps
	opts     Options
}

// NewManager creates a session manager.
func NewManager(deps Deps, opts Options) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
		opts:     opts,
	}
}

// Open creates and registers a session for target.
func (m *Manager) Open(ctx context.Context, target *models.VideoAsset, siblings []*models.VideoAsset) *Session {
	s := Open(ctx, target, siblings, m.deps, m.opts)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	return s
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close requests session close and deregisters it on success.
func (m *Manager) Close(id string, confirm bool) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	if err := s.RequestClose(confirm); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	metrics.SessionsActive.Dec()
	return nil
}

// ReapIdle force-closes sessions idle for longer than maxIdle and returns
// how many were closed. Sessions with an upload or save in flight are left
// alone regardless of age.
func (m *Manager) ReapIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*Session
	for _, s := range m.sessions {
		switch s.State() {
		case StateUploading, StateSaving:
			continue
		}
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		delete(m.sessions, s.ID)
	}
	m.mu.Unlock()

	for _, s := range stale {
		if err := s.RequestClose(true); err != nil {
			m.deps.Log.Warnf("failed to close idle session %s: %v", s.ID, err)
		}
		metrics.SessionsActive.Dec()
		metrics.SessionsReapedTotal.Inc()
	}
	return len(stale)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
