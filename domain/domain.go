package domain

import (
	"context"
	"time"
)

// Identity is the verified (userID, displayName) pair produced by the
// authentication handshake. It is immutable for the lifetime of a session.
type Identity struct {
	UserID      string
	DisplayName string
}

// Message kinds.
const (
	KindDirect    = "direct"
	KindBroadcast = "broadcast"
	KindBot       = "bot"
)

// ChatMessage is a unit of persisted, relayable communication. ReceiverID
// empty means broadcast. The store assigns ID and CreatedAt on persist.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId,omitempty"`
	Body       string    `json:"body"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Connection is one live transport session's delivery handle. Send must
// never block: implementations queue the frame or drop it.
type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Session is a Connection with a verified identity attached.
type Session interface {
	Connection
	Identity() Identity
}

// FrameHandler processes one inbound frame from a session.
type FrameHandler interface {
	HandleFrame(sess Session, data []byte)
}

// MessageStore persists chat messages. Persist returns the enriched message
// (id and timestamp assigned). Implementations must honor ctx cancellation.
type MessageStore interface {
	Persist(ctx context.Context, msg ChatMessage) (ChatMessage, error)
}

// IdentityVerifier validates a bearer token before a session is admitted.
type IdentityVerifier interface {
	Verify(token string) (Identity, error)
}
