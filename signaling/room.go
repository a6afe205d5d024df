// Package signaling coordinates meeting rooms: presence, host election, and
// opaque peer-to-peer relay. Payload semantics (SDP, ICE) are never
// interpreted here.
package signaling

import (
	"sync"
)

// Participant is one room membership record, keyed by transport session id.
type Participant struct {
	ConnectionID string
	DisplayName  string
}

// Room holds an insertion-ordered participant list and at most one host.
// All mutations of one room happen under its own mutex, so no two
// operations on the same room are ever concurrent.
type Room struct {
	participants []Participant
	host         string
	dead         bool
	mu           sync.Mutex
}

// LeaveResult reports what a removal changed.
type LeaveResult struct {
	Removed   bool
	NewHostID string // non-empty when the host migrated
	Empty     bool
	Remaining []Participant
}

// add inserts p, replacing an existing record with the same ConnectionID in
// place so a re-join never duplicates membership. The first participant of
// a host-less room becomes host. Returns the other current members and the
// host id; ok is false when the room has already been reclaimed.
func (r *Room) add(p Participant) (others []Participant, hostID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dead {
		return nil, "", false
	}

	replaced := false
	for i := range r.participants {
		if r.participants[i].ConnectionID == p.ConnectionID {
			r.participants[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		r.participants = append(r.participants, p)
	}
	if r.host == "" {
		r.host = p.ConnectionID
	}

	others = make([]Participant, 0, len(r.participants)-1)
	for _, member := range r.participants {
		if member.ConnectionID != p.ConnectionID {
			others = append(others, member)
		}
	}
	return others, r.host, true
}

// remove deletes the participant and migrates the host role if it belonged
// to the departing member. Succession is deterministic: the earliest
// remaining joiner becomes host.
func (r *Room) remove(connectionID string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.participants {
		if r.participants[i].ConnectionID == connectionID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return LeaveResult{}
	}

	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)

	res := LeaveResult{Removed: true}
	if r.host == connectionID {
		if len(r.participants) > 0 {
			r.host = r.participants[0].ConnectionID
			res.NewHostID = r.host
		} else {
			r.host = ""
		}
	}
	res.Empty = len(r.participants) == 0
	res.Remaining = r.snapshotLocked()
	return res
}

// transferHost reassigns the host role. Honored only when from is the
// current host and to is a current member.
func (r *Room) transferHost(from, to string) (members []Participant, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.host != from {
		return nil, false
	}
	found := false
	for _, p := range r.participants {
		if p.ConnectionID == to {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}
	r.host = to
	return r.snapshotLocked(), true
}

// end clears the host role without evicting members: the meeting is over
// and clients are expected to disconnect on their own. Honored only for the
// current host.
func (r *Room) end(from string) (members []Participant, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.host == "" || r.host != from {
		return nil, false
	}
	r.host = ""
	return r.snapshotLocked(), true
}

// member returns the participant record for connectionID, if present.
func (r *Room) member(connectionID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.ConnectionID == connectionID {
			return p, true
		}
	}
	return Participant{}, false
}

// members returns a snapshot of the current participant list.
func (r *Room) members() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// hostID returns the current host, or "" when the room has none.
func (r *Room) hostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

func (r *Room) snapshotLocked() []Participant {
	out := make([]Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// RoomStore is the in-memory room table. The table mutex is always taken
// before a room mutex, never the other way around.
type RoomStore struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

// NewRoomStore creates an empty RoomStore.
func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*Room)}
}

// Join adds p to roomID, creating the room lazily. Retries when it loses a
// race against reclamation of the dying room, so a join always lands in a
// live room.
func (s *RoomStore) Join(roomID string, p Participant) (others []Participant, hostID string) {
	for {
		room := s.getOrCreate(roomID)
		if others, hostID, ok := room.add(p); ok {
			return others, hostID
		}
	}
}

// Leave removes the participant from roomID. An empty room is reclaimed: a
// later Join to the same id starts fresh with a new host.
func (s *RoomStore) Leave(roomID, connectionID string) LeaveResult {
	room, ok := s.get(roomID)
	if !ok {
		return LeaveResult{}
	}
	res := room.remove(connectionID)
	if res.Removed && res.Empty {
		s.reap(roomID, room)
	}
	return res
}

// TransferHost forwards to the room; a missing room is a silent no-op.
func (s *RoomStore) TransferHost(roomID, from, to string) ([]Participant, bool) {
	room, ok := s.get(roomID)
	if !ok {
		return nil, false
	}
	return room.transferHost(from, to)
}

// EndMeeting forwards to the room; a missing room is a silent no-op.
func (s *RoomStore) EndMeeting(roomID, from string) ([]Participant, bool) {
	room, ok := s.get(roomID)
	if !ok {
		return nil, false
	}
	return room.end(from)
}

// Member resolves one participant record in roomID.
func (s *RoomStore) Member(roomID, connectionID string) (Participant, bool) {
	room, ok := s.get(roomID)
	if !ok {
		return Participant{}, false
	}
	return room.member(connectionID)
}

// Members returns a snapshot of roomID's participants.
func (s *RoomStore) Members(roomID string) []Participant {
	room, ok := s.get(roomID)
	if !ok {
		return nil
	}
	return room.members()
}

// Host returns roomID's current host id, or "".
func (s *RoomStore) Host(roomID string) string {
	room, ok := s.get(roomID)
	if !ok {
		return ""
	}
	return room.hostID()
}

// Stats returns the number of live rooms and total participants.
func (s *RoomStore) Stats() (rooms, participants int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms = len(s.rooms)
	for _, room := range s.rooms {
		participants += len(room.members())
	}
	return rooms, participants
}

func (s *RoomStore) get(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) getOrCreate(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		room = &Room{}
		s.rooms[roomID] = room
	}
	return room
}

// reap deletes the room from the table if it is still empty. The dead flag
// makes a concurrent add retry against a fresh room.
func (s *RoomStore) reap(roomID string, room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.dead || len(room.participants) > 0 {
		return
	}
	if current, ok := s.rooms[roomID]; ok && current == room {
		room.dead = true
		delete(s.rooms, roomID)
	}
}
