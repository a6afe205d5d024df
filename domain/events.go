package domain

import "encoding/json"

// Meeting socket event names. These are the wire contract shared with
// clients; renaming any of them breaks deployed frontends.
const (
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventAllUsers         = "all-users"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventChatMessage      = "chat-message"
	EventSignal           = "signal"
	EventChangeHost       = "change-host"
	EventHostChanged      = "host-changed"
	EventEndMeeting       = "end-meeting"
	EventMeetingEnded     = "meeting-ended"
)

// Envelope wraps every frame on the meeting socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent marshals an event payload into a wire-ready envelope.
func EncodeEvent(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// PeerInfo identifies one room participant on the wire.
type PeerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// JoinRoomPayload is the inbound join-room event body.
type JoinRoomPayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"name"`
}

// AllUsersPayload is sent only to a joiner: everyone already present plus
// the current host.
type AllUsersPayload struct {
	Participants []PeerInfo `json:"participants"`
	HostID       string     `json:"hostId"`
}

// RoomChatPayload is the room-scoped chat-message body, both directions.
type RoomChatPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// HostChangePayload carries the host id for change-host and host-changed.
type HostChangePayload struct {
	NewHostID string `json:"newHostId"`
}

// DisconnectPayload carries the departing connection id.
type DisconnectPayload struct {
	ConnectionID string `json:"connectionId"`
}
