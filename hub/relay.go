package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dragonfox-collabsync-server/domain"
)

// ErrPersistenceFailed is returned by Relay when the message store rejects
// or times out a write. Nothing is delivered in that case.
var ErrPersistenceFailed = errors.New("message persistence failed")

const defaultPersistTimeout = 5 * time.Second

// Relay persists inbound chat messages and fans them out to live
// connections. Delivery is best-effort: an unregistered recipient or a full
// send queue drops the frame, the durable copy in the store is the source
// of truth.
type Relay struct {
	registry       *Registry
	store          domain.MessageStore
	persistTimeout time.Duration
}

// NewRelay creates a Relay over the given registry and store.
func NewRelay(registry *Registry, store domain.MessageStore, persistTimeout time.Duration) *Relay {
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}
	return &Relay{
		registry:       registry,
		store:          store,
		persistTimeout: persistTimeout,
	}
}

// Relay persists msg and delivers the enriched copy. A set ReceiverID
// addresses one user; empty ReceiverID broadcasts to every registered
// connection, the sender's own included.
func (r *Relay) Relay(ctx context.Context, msg domain.ChatMessage) error {
	ctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()

	enriched, err := r.store.Persist(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	data, err := json.Marshal(enriched)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", enriched.ID, err)
	}

	if enriched.ReceiverID != "" {
		conn, ok := r.registry.Lookup(enriched.ReceiverID)
		if !ok {
			slog.Debug("recipient offline, message stored only", "messageId", enriched.ID, "receiverId", enriched.ReceiverID)
			return nil
		}
		if err := conn.Send(data); err != nil {
			slog.Warn("direct delivery dropped", "messageId", enriched.ID, "receiverId", enriched.ReceiverID, "error", err)
		}
		return nil
	}

	for _, conn := range r.registry.Snapshot() {
		if err := conn.Send(data); err != nil {
			slog.Warn("broadcast delivery dropped", "messageId", enriched.ID, "connId", conn.ID(), "error", err)
		}
	}
	return nil
}
