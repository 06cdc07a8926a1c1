// Package chatsocket serves chat turns over a WebSocket with the same request
// and envelope shapes as the HTTP route.
package chatsocket

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks the live connection of each chat session per visitor.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Get returns the live connection for a visitor's chat session.
func (m *Registry) Get(visitorID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[visitorID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register binds conn to a visitor's chat session, closing any connection it
// replaces.
func (m *Registry) Register(visitorID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[visitorID]; !exists {
		m.active[visitorID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[visitorID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[visitorID][sessionID] = conn
	slog.Debug("Chat socket registered", "visitor_id", visitorID, "session_id", sessionID)
}

// Unregister removes conn wherever it is registered for the visitor.
func (m *Registry) Unregister(visitorID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[visitorID]
	if !ok {
		return
	}
	for sid, current := range sessions {
		if current == conn {
			delete(sessions, sid)
			slog.Debug("Chat socket unregistered", "visitor_id", visitorID, "session_id", sid)
		}
	}
	if len(sessions) == 0 {
		delete(m.active, visitorID)
	}
}

// Len returns the number of registered connections.
func (m *Registry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// CloseAll closes every registered connection. Used on shutdown.
func (m *Registry) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for visitorID, sessions := range m.active {
		for _, conn := range sessions {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(m.active, visitorID)
	}
}
