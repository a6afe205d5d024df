package protocol

import (
	"encoding/json"
	"log/slog"

	"dragonfox-collabsync-server/domain"
)

// Coordinator is the room operation surface the handler drives.
type Coordinator interface {
	Join(roomID, connectionID, displayName string)
	Leave(roomID, connectionID string)
	RelayChat(roomID, fromConnectionID, text string)
	Signal(targetConnectionID string, payload json.RawMessage)
	ChangeHost(roomID, fromConnectionID, newHostID string)
	EndMeeting(roomID, fromConnectionID string)
}

// signalAddress is the only part of a signal payload the server reads; the
// rest is forwarded verbatim.
type signalAddress struct {
	To string `json:"to"`
}

// roomChatFrame is the inbound room chat body. The display name on the
// outbound side comes from the sender's participant record, not from here.
type roomChatFrame struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type changeHostFrame struct {
	RoomID    string `json:"roomId"`
	NewHostID string `json:"newHostId"`
}

type leaveRoomFrame struct {
	RoomID string `json:"roomId"`
}

type endMeetingFrame struct {
	RoomID string `json:"roomId"`
}

// SignalingHandler decodes meeting-socket envelopes and drives the
// coordinator.
type SignalingHandler struct {
	coordinator Coordinator
}

// NewSignalingHandler creates a SignalingHandler over the coordinator.
func NewSignalingHandler(coordinator Coordinator) *SignalingHandler {
	return &SignalingHandler{coordinator: coordinator}
}

// HandleFrame implements domain.FrameHandler.
func (h *SignalingHandler) HandleFrame(sess domain.Session, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("invalid signaling frame", "connId", sess.ID(), "error", err)
		return
	}

	switch env.Event {
	case domain.EventJoinRoom:
		var p domain.JoinRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == "" {
			slog.Warn("invalid join-room payload", "connId", sess.ID(), "error", err)
			return
		}
		name := p.DisplayName
		if name == "" {
			name = sess.Identity().DisplayName
		}
		h.coordinator.Join(p.RoomID, sess.ID(), name)

	case domain.EventLeaveRoom:
		var p leaveRoomFrame
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == "" {
			slog.Warn("invalid leave-room payload", "connId", sess.ID(), "error", err)
			return
		}
		h.coordinator.Leave(p.RoomID, sess.ID())

	case domain.EventChatMessage:
		var p roomChatFrame
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == "" {
			slog.Warn("invalid chat-message payload", "connId", sess.ID(), "error", err)
			return
		}
		h.coordinator.RelayChat(p.RoomID, sess.ID(), p.Message)

	case domain.EventSignal:
		var addr signalAddress
		if err := json.Unmarshal(env.Data, &addr); err != nil || addr.To == "" {
			slog.Warn("invalid signal payload", "connId", sess.ID(), "error", err)
			return
		}
		h.coordinator.Signal(addr.To, env.Data)

	case domain.EventChangeHost:
		var p changeHostFrame
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == "" || p.NewHostID == "" {
			slog.Warn("invalid change-host payload", "connId", sess.ID(), "error", err)
			return
		}
		h.coordinator.ChangeHost(p.RoomID, sess.ID(), p.NewHostID)

	case domain.EventEndMeeting:
		var p endMeetingFrame
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == "" {
			slog.Warn("invalid end-meeting payload", "connId", sess.ID(), "error", err)
			return
		}
		h.coordinator.EndMeeting(p.RoomID, sess.ID())

	default:
		slog.Warn("unknown event dropped", "connId", sess.ID(), "event", env.Event)
	}
}
