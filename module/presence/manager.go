package presence

import (
	"context"
	"sync"
)

// Manager owns one Session per logged-in user. Sessions are explicit
// per-user state, not process-wide flags, so several users (and tests)
// can coexist in one process.
type Manager struct {
	// app bounds every session's background goroutines; request
	// contexts passed into Ensure/Restart only cover setup writes.
	app  context.Context
	st   Store
	dir  Directory
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(app context.Context, st Store, dir Directory, opts Options) *Manager {
	if app == nil {
		app = context.Background()
	}
	return &Manager{
		app:      app,
		st:       st,
		dir:      dir,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Ensure returns the user's session, starting one if needed.
func (m *Manager) Ensure(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		s = NewSession(m.app, userID, m.st, m.dir, m.opts)
		m.sessions[userID] = s
	}
	m.mu.Unlock()

	if !ok {
		if err := s.Start(ctx); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Get returns the session or nil; it never starts one.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// Restart re-runs session setup after a pairing transition.
func (m *Manager) Restart(ctx context.Context, userID string) error {
	m.mu.Lock()
	s := m.sessions[userID]
	m.mu.Unlock()
	if s == nil {
		_, err := m.Ensure(ctx, userID)
		return err
	}
	return s.Restart(ctx)
}

// Stop gracefully tears down and forgets the user's session.
func (m *Manager) Stop(ctx context.Context, userID string) {
	m.mu.Lock()
	s := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if s != nil {
		s.Stop(ctx)
	}
}

// StopAll is the shutdown path.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.Stop(ctx)
	}
}
