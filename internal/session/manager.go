package session

import (
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/signamoz/signa/internal/gesture"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Manager owns the live sessions. Sessions are never persisted.
type Manager struct {
	config Config

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	onWord   []func(WordEvent)
}

// NewManager creates a manager whose sessions start from config.
func NewManager(config Config) *Manager {
	return &Manager{
		config:   config,
		sessions: make(map[string]*Session),
	}
}

// OnWord registers fn on every current and future session.
func (m *Manager) OnWord(fn func(WordEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWord = append(m.onWord, fn)
	for _, s := range m.sessions {
		s.OnWord(fn)
	}
}

// Create starts a new session. An empty language uses the manager default.
func (m *Manager) Create(lang gesture.Language) *Session {
	config := m.config
	if lang != "" {
		config.Language = lang
	}
	s := New(uuid.NewString(), config)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fn := range m.onWord {
		s.OnWord(fn)
	}
	m.sessions[s.ID()] = s
	m.order = append(m.order, s.ID())
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns the live sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id])
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop stops and forgets the session with id.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Stop()
	return nil
}

// StopAll stops every session and waits for their classifications to
// return, so no word is emitted after it does.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.order = nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		s.Wait()
	}
}
