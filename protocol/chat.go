// Package protocol decodes inbound frames and dispatches them to the hub
// and the signaling coordinator. Malformed frames are logged and dropped;
// the connection stays open.
package protocol

import (
	"context"
	"encoding/json"
	"log/slog"

	"dragonfox-collabsync-server/domain"
)

// MessageRelay persists and fans out one chat message.
type MessageRelay interface {
	Relay(ctx context.Context, msg domain.ChatMessage) error
}

// ChatFrame is the inbound frame on the chat socket. An empty receiverId
// means broadcast.
type ChatFrame struct {
	ReceiverID string `json:"receiverId,omitempty"`
	Body       string `json:"body"`
	Kind       string `json:"kind,omitempty"`
}

// ChatHandler turns chat frames into relayed messages. The sender id always
// comes from the session's verified identity, never from the frame.
type ChatHandler struct {
	relay MessageRelay
}

// NewChatHandler creates a ChatHandler over the given relay.
func NewChatHandler(relay MessageRelay) *ChatHandler {
	return &ChatHandler{relay: relay}
}

// HandleFrame implements domain.FrameHandler.
func (h *ChatHandler) HandleFrame(sess domain.Session, data []byte) {
	var frame ChatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("invalid chat frame", "connId", sess.ID(), "error", err)
		return
	}
	if frame.Body == "" {
		slog.Warn("empty chat frame dropped", "connId", sess.ID())
		return
	}

	msg := domain.ChatMessage{
		SenderID:   sess.Identity().UserID,
		ReceiverID: frame.ReceiverID,
		Body:       frame.Body,
		Kind:       frame.Kind,
	}

	if err := h.relay.Relay(context.Background(), msg); err != nil {
		slog.Error("relay failed", "connId", sess.ID(), "senderId", msg.SenderID, "error", err)
	}
}
