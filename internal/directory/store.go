// Package directory holds the process-wide presence directory and call
// session table. Both are plain in-memory maps behind a mutex: the relay is
// explicitly single-instance, and a process restart resets all state.
package directory

import (
	"sync"
	"time"

	"amora-realtime/internal/domain"
)

// Conn is the opaque handle to a live client connection. The WebSocket
// layer implements it; tests substitute fakes.
type Conn interface {
	// Send enqueues a named event for delivery. It must not block; a full
	// client buffer is reported as an error and the event is dropped.
	Send(event string, data any) error
}

// SessionStore is the injectable presence/session state of the relay.
// A multi-instance deployment can later swap in a shared backplane without
// touching handler logic.
type SessionStore interface {
	// Register binds userID to conn, overwriting any existing handle
	// (last-connect-wins, no multi-device fan-out) and marks the user online.
	Register(userID string, conn Conn)

	// Unregister removes the handle and marks the user offline. When conn is
	// non-nil and a different handle is currently registered, the call is a
	// no-op: a stale connection's teardown must not evict its replacement.
	Unregister(userID string, conn Conn)

	// Lookup resolves the recipient's current connection. A miss is silent:
	// forwarding is simply skipped for offline users.
	Lookup(userID string) (Conn, bool)

	// Presence returns the last-known online state. The zero value means the
	// user has never connected since process start.
	Presence(userID string) domain.Presence

	// OnlineUsers lists the ids of all currently connected users.
	OnlineUsers() []string

	// PutSession stores a call session under its directed key,
	// overwriting any session already there.
	PutSession(session domain.CallSession)

	// Session fetches the call session stored under key, if any.
	Session(key string) (domain.CallSession, bool)

	// DeleteSession removes the call session stored under key.
	DeleteSession(key string)
}

// InMemoryStore implements SessionStore with mutex-guarded maps.
type InMemoryStore struct {
	mu       sync.RWMutex
	conns    map[string]Conn
	presence map[string]domain.Presence
	sessions map[string]domain.CallSession
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conns:    make(map[string]Conn),
		presence: make(map[string]domain.Presence),
		sessions: make(map[string]domain.CallSession),
	}
}

// Register implements SessionStore.
func (s *InMemoryStore) Register(userID string, conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[userID] = conn
	s.presence[userID] = domain.Presence{Online: true, LastSeen: time.Now().UTC()}
}

// Unregister implements SessionStore.
func (s *InMemoryStore) Unregister(userID string, conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.conns[userID]; ok && conn != nil && current != conn {
		// A newer connection has already replaced this one.
		return
	}

	delete(s.conns, userID)
	s.presence[userID] = domain.Presence{Online: false, LastSeen: time.Now().UTC()}
}

// Lookup implements SessionStore.
func (s *InMemoryStore) Lookup(userID string) (Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[userID]
	return conn, ok
}

// Presence implements SessionStore.
func (s *InMemoryStore) Presence(userID string) domain.Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.presence[userID]
}

// OnlineUsers implements SessionStore.
func (s *InMemoryStore) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.conns))
	for userID := range s.conns {
		users = append(users, userID)
	}
	return users
}

// PutSession implements SessionStore.
func (s *InMemoryStore) PutSession(session domain.CallSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Key()] = session
}

// Session implements SessionStore.
func (s *InMemoryStore) Session(key string) (domain.CallSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[key]
	return session, ok
}

// DeleteSession implements SessionStore.
func (s *InMemoryStore) DeleteSession(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
}
