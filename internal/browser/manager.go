package browser

import (
	"context"
	"sync"
)

// DriverFactory creates a fresh driver for a new session.
type DriverFactory func(ctx context.Context) (Driver, error)

// Manager hands out one browsing session per task.
type Manager struct {
	mu       sync.Mutex
	factory  DriverFactory
	sessions map[string]*Session
}

// NewManager creates a session manager backed by the factory.
func NewManager(factory DriverFactory) *Manager {
	return &Manager{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// Session returns the task's session, creating it on first use.
func (m *Manager) Session(ctx context.Context, taskID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[taskID]; ok {
		return s, nil
	}
	driver, err := m.factory(ctx)
	if err != nil {
		return nil, err
	}
	s := NewSession(driver)
	m.sessions[taskID] = s
	return s, nil
}

// Peek returns the task's session if one already exists. It never
// launches a driver.
func (m *Manager) Peek(taskID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[taskID]
	return s, ok
}

// CloseSession shuts down and forgets the task's session, if any.
func (m *Manager) CloseSession(ctx context.Context, taskID string) error {
	m.mu.Lock()
	s, ok := m.sessions[taskID]
	delete(m.sessions, taskID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close(ctx)
}

// CloseAll shuts down every open session.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close(ctx)
	}
}
