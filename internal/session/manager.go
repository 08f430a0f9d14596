package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ccbridge-ai/ccbridge/internal/eventbus"
	"github.com/ccbridge-ai/ccbridge/internal/switcher"
)

// Status represents session status.
type Status string

const (
	StatusRunning Status = "running"
	StatusClosed  Status = "closed"
)

// Session represents a single assistant chat session. The provider snapshot
// is captured at creation time; a configuration change never mutates a live
// session: it tears the session down, and the next user interaction starts
// a fresh one against the then-current configuration.
type Session struct {
	ID        string
	Title     string
	Provider  *switcher.Provider
	StartTime time.Time
	Status    Status

	mu sync.RWMutex
}

// SetStatus updates the session status in a threadsafe way.
func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

// CurrentStatus returns the session status.
func (s *Session) CurrentStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// EventListener is called when session events occur.
type EventListener func(event string, session *Session)

// Manager tracks active assistant chat sessions.
type Manager struct {
	sessions  map[string]*Session
	mu        sync.RWMutex
	listeners []EventListener
	eventBus  *eventbus.Bus
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// UseEventBus wires the manager with the shared event bus.
func (m *Manager) UseEventBus(bus *eventbus.Bus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventBus = bus
}

// AddEventListener adds a listener for session events.
func (m *Manager) AddEventListener(listener EventListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// notifyListeners notifies all listeners about an event.
func (m *Manager) notifyListeners(event string, session *Session) {
	// Call listeners without holding the write lock to avoid deadlock.
	m.mu.RLock()
	listeners := append([]EventListener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, listener := range listeners {
		listener(event, session)
	}
}

func (m *Manager) getBus() *eventbus.Bus {
	m.mu.RLock()
	bus := m.eventBus
	m.mu.RUnlock()
	return bus
}

func (m *Manager) publishLifecycle(session *Session, state eventbus.SessionState, reason string) {
	eventbus.Publish(context.Background(), m.getBus(), eventbus.Sessions.Lifecycle, eventbus.SourceSessionManager, eventbus.SessionLifecycleEvent{
		SessionID: session.ID,
		State:     state,
		Reason:    reason,
	})
}

// Create starts a new chat session with the given title and provider
// snapshot. The provider may be nil when cc-switch is not installed.
func (m *Manager) Create(title string, provider *switcher.Provider) *Session {
	session := &Session{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Title:     title,
		Provider:  provider,
		StartTime: time.Now(),
		Status:    StatusRunning,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.notifyListeners("session_created", session)
	m.publishLifecycle(session, eventbus.SessionStateCreated, "session_created")

	return session
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return session, nil
}

// List returns all sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// ActiveCount returns the number of sessions still running.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, session := range m.sessions {
		if session.CurrentStatus() == StatusRunning {
			count++
		}
	}
	return count
}

// Close stops a single session.
func (m *Manager) Close(id string, reason string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}

	if session.CurrentStatus() == StatusClosed {
		return nil
	}
	session.SetStatus(StatusClosed)

	m.notifyListeners("session_closed", session)
	m.publishLifecycle(session, eventbus.SessionStateClosed, reason)

	return nil
}

// CloseAll stops every running session and returns how many were closed.
// It is a no-op when no sessions are active.
func (m *Manager) CloseAll(reason string) int {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mu.RUnlock()

	closed := 0
	for _, session := range sessions {
		if session.CurrentStatus() != StatusRunning {
			continue
		}
		session.SetStatus(StatusClosed)
		closed++

		m.notifyListeners("session_closed", session)
		m.publishLifecycle(session, eventbus.SessionStateClosed, reason)
	}
	return closed
}

// CleanupClosed removes closed sessions older than the given duration and
// returns how many were removed.
func (m *Manager) CleanupClosed(olderThan time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for id, session := range m.sessions {
		if session.CurrentStatus() == StatusClosed && session.StartTime.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
