package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"

	"dragonfox-collabsync-server/domain"
)

// Coordinator binds transport sessions to rooms and turns room mutations
// into wire events. Every operation is best-effort: unknown rooms, peers,
// or sessions are silent no-ops, because a peer may always disconnect
// between address resolution and delivery.
type Coordinator struct {
	rooms      *RoomStore
	sessions   map[string]domain.Connection
	membership map[string]map[string]struct{} // connectionID -> roomIDs
	mu         sync.RWMutex
}

// NewCoordinator creates a Coordinator over its own empty room table.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		rooms:      NewRoomStore(),
		sessions:   make(map[string]domain.Connection),
		membership: make(map[string]map[string]struct{}),
	}
}

// Attach binds a transport session so peers can address it by connection
// id. Must precede any Join for that session.
func (c *Coordinator) Attach(conn domain.Connection) {
	c.mu.Lock()
	c.sessions[conn.ID()] = conn
	c.mu.Unlock()
}

// Detach leaves every room the session joined and unbinds it. Called from
// the transport teardown path; safe to call more than once.
func (c *Coordinator) Detach(connectionID string) {
	c.mu.Lock()
	rooms := c.membership[connectionID]
	delete(c.membership, connectionID)
	delete(c.sessions, connectionID)
	c.mu.Unlock()

	for roomID := range rooms {
		c.leave(roomID, connectionID)
	}
}

// Join adds the session to roomID, answering it with all-users and telling
// everyone already present about the newcomer.
func (c *Coordinator) Join(roomID, connectionID, displayName string) {
	c.mu.Lock()
	if _, ok := c.sessions[connectionID]; !ok {
		c.mu.Unlock()
		slog.Warn("join from unattached session", "room", roomID, "connId", connectionID)
		return
	}
	if c.membership[connectionID] == nil {
		c.membership[connectionID] = make(map[string]struct{})
	}
	c.membership[connectionID][roomID] = struct{}{}
	c.mu.Unlock()

	others, hostID := c.rooms.Join(roomID, Participant{
		ConnectionID: connectionID,
		DisplayName:  displayName,
	})

	// A teardown may have raced the room insert: its leave ran before the
	// participant existed and only cleared the membership entry. Undo the
	// insert, or a ghost participant (and future host) would outlive the
	// session and keep the room from being reclaimed.
	c.mu.RLock()
	_, stillMember := c.membership[connectionID][roomID]
	c.mu.RUnlock()
	if !stillMember {
		c.leave(roomID, connectionID)
		return
	}

	peers := make([]domain.PeerInfo, len(others))
	for i, p := range others {
		peers[i] = domain.PeerInfo{ID: p.ConnectionID, Name: p.DisplayName}
	}
	c.send(connectionID, domain.EventAllUsers, domain.AllUsersPayload{
		Participants: peers,
		HostID:       hostID,
	})

	joined := domain.PeerInfo{ID: connectionID, Name: displayName}
	for _, p := range others {
		c.send(p.ConnectionID, domain.EventUserConnected, joined)
	}

	slog.Info("participant joined", "room", roomID, "connId", connectionID, "host", hostID)
}

// Leave removes the session from roomID, announces the departure, and
// announces the successor when the host role migrated.
func (c *Coordinator) Leave(roomID, connectionID string) {
	c.mu.Lock()
	if rooms := c.membership[connectionID]; rooms != nil {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(c.membership, connectionID)
		}
	}
	c.mu.Unlock()

	c.leave(roomID, connectionID)
}

func (c *Coordinator) leave(roomID, connectionID string) {
	res := c.rooms.Leave(roomID, connectionID)
	if !res.Removed {
		return
	}

	for _, p := range res.Remaining {
		c.send(p.ConnectionID, domain.EventUserDisconnected, domain.DisconnectPayload{ConnectionID: connectionID})
	}
	if res.NewHostID != "" {
		for _, p := range res.Remaining {
			c.send(p.ConnectionID, domain.EventHostChanged, domain.HostChangePayload{NewHostID: res.NewHostID})
		}
		slog.Info("host migrated", "room", roomID, "newHost", res.NewHostID)
	}
	if res.Empty {
		slog.Info("room reclaimed", "room", roomID)
	}
}

// RelayChat broadcasts a chat line to every other member of roomID. The
// display name comes from the sender's own participant record; a sender
// that is not a member is dropped. No persistence: room chat is ephemeral.
func (c *Coordinator) RelayChat(roomID, fromConnectionID, text string) {
	sender, ok := c.rooms.Member(roomID, fromConnectionID)
	if !ok {
		return
	}
	payload := domain.RoomChatPayload{Name: sender.DisplayName, Message: text}
	for _, p := range c.rooms.Members(roomID) {
		if p.ConnectionID == fromConnectionID {
			continue
		}
		c.send(p.ConnectionID, domain.EventChatMessage, payload)
	}
}

// Signal forwards an opaque negotiation payload verbatim to the target
// session. No membership check: the payload is trusted to address a valid
// peer, and an unknown target drops silently.
func (c *Coordinator) Signal(targetConnectionID string, payload json.RawMessage) {
	c.mu.RLock()
	conn, ok := c.sessions[targetConnectionID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(domain.Envelope{Event: domain.EventSignal, Data: payload})
	if err != nil {
		slog.Warn("signal encode failed", "target", targetConnectionID, "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("signal dropped", "target", targetConnectionID, "error", err)
	}
}

// ChangeHost transfers the host role. Only the current host may transfer,
// and only to a current member; anything else is ignored.
func (c *Coordinator) ChangeHost(roomID, fromConnectionID, newHostID string) {
	members, ok := c.rooms.TransferHost(roomID, fromConnectionID, newHostID)
	if !ok {
		slog.Warn("host transfer refused", "room", roomID, "from", fromConnectionID, "to", newHostID)
		return
	}
	for _, p := range members {
		c.send(p.ConnectionID, domain.EventHostChanged, domain.HostChangePayload{NewHostID: newHostID})
	}
	slog.Info("host transferred", "room", roomID, "newHost", newHostID)
}

// EndMeeting clears the host role and tells every member the meeting is
// over. Members are not evicted: clients disconnect on their own. Only the
// current host may end the meeting.
func (c *Coordinator) EndMeeting(roomID, fromConnectionID string) {
	members, ok := c.rooms.EndMeeting(roomID, fromConnectionID)
	if !ok {
		slog.Warn("end-meeting refused", "room", roomID, "from", fromConnectionID)
		return
	}
	for _, p := range members {
		c.send(p.ConnectionID, domain.EventMeetingEnded, nil)
	}
	slog.Info("meeting ended", "room", roomID)
}

// Stats returns live room and participant counts.
func (c *Coordinator) Stats() (rooms, participants int) {
	return c.rooms.Stats()
}

func (c *Coordinator) send(connectionID, event string, payload any) {
	c.mu.RLock()
	conn, ok := c.sessions[connectionID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	data, err := domain.EncodeEvent(event, payload)
	if err != nil {
		slog.Warn("event encode failed", "event", event, "connId", connectionID, "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("event dropped", "event", event, "connId", connectionID, "error", err)
	}
}
