// Package hub holds the authenticated connection registry and the chat
// message relay that fans out over it.
package hub

import (
	"log/slog"
	"sync"

	"dragonfox-collabsync-server/domain"
)

// Registry maps each authenticated userID to exactly one live connection.
type Registry struct {
	conns map[string]domain.Connection
	mu    sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]domain.Connection),
	}
}

// Register inserts the mapping for userID. A previous connection for the
// same user is closed before being overwritten, so a channel is never
// orphaned by a reconnect.
func (r *Registry) Register(userID string, conn domain.Connection) {
	r.mu.Lock()
	prev, existed := r.conns[userID]
	r.conns[userID] = conn
	count := len(r.conns)
	r.mu.Unlock()

	if existed && prev != conn {
		prev.Close()
		slog.Info("connection replaced", "userId", userID, "evicted", prev.ID())
	}
	slog.Info("user connected", "userId", userID, "connId", conn.ID(), "connections", count)
}

// Unregister removes the mapping for userID, but only while it still points
// at conn: an evicted session tearing itself down must not remove its
// successor. Safe to call more than once.
func (r *Registry) Unregister(userID string, conn domain.Connection) {
	r.mu.Lock()
	current, exists := r.conns[userID]
	if !exists || current != conn {
		r.mu.Unlock()
		return
	}
	delete(r.conns, userID)
	count := len(r.conns)
	r.mu.Unlock()

	slog.Info("user disconnected", "userId", userID, "connId", conn.ID(), "connections", count)
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Snapshot returns every currently registered connection.
func (r *Registry) Snapshot() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]domain.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
