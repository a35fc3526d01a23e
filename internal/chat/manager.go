package chat

import (
	"errors"
	"sync"
)

// ErrSessionNotFound is returned for ids that are not mounted.
var ErrSessionNotFound = errors.New("chat: session not found")

// Manager keeps the sessions of the views currently mounted by the HTTP service.
// Each view owns exactly one session; sessions never share state.
type Manager struct {
	coordinator *Coordinator
	opts        Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a Manager whose sessions are created with opts.
func NewManager(coordinator *Coordinator, opts Options) *Manager {
	return &Manager{
		coordinator: coordinator,
		opts:        opts,
		sessions:    make(map[string]*Session),
	}
}

// Mount creates a session for a newly mounted view.
func (m *Manager) Mount() *Session {
	session := NewSession(m.coordinator, m.opts)

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	return session
}

// Get returns the session mounted under id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Unmount discards the session and forgets it.
func (m *Manager) Unmount(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	session.Discard()
	return nil
}

// Len returns the number of mounted sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown unmounts every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Discard()
	}
}
