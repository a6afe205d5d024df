package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func join(s *RoomStore, roomID, connID, name string) ([]Participant, string) {
	return s.Join(roomID, Participant{ConnectionID: connID, DisplayName: name})
}

func TestRoomStore_FirstJoinerBecomesHost(t *testing.T) {
	s := NewRoomStore()

	others, hostID := join(s, "r1", "c1", "Alice")

	assert.Empty(t, others)
	assert.Equal(t, "c1", hostID)
	assert.Equal(t, "c1", s.Host("r1"))
}

func TestRoomStore_JoinReturnsOthersAndHost(t *testing.T) {
	s := NewRoomStore()
	join(s, "r1", "c1", "Alice")
	join(s, "r1", "c2", "Bob")

	others, hostID := join(s, "r1", "c3", "Carol")

	require.Len(t, others, 2)
	assert.Equal(t, "c1", others[0].ConnectionID)
	assert.Equal(t, "c2", others[1].ConnectionID)
	assert.Equal(t, "c1", hostID)
}

func TestRoomStore_IdempotentJoin(t *testing.T) {
	s := NewRoomStore()
	join(s, "r1", "c1", "Alice")
	join(s, "r1", "c2", "Bob")

	// Re-join replaces the record in place, keeping position and count.
	others, hostID := join(s, "r1", "c1", "Alice B.")

	require.Len(t, others, 1)
	assert.Equal(t, "c2", others[0].ConnectionID)
	assert.Equal(t, "c1", hostID)
	assert.Len(t, s.Members("r1"), 2)

	got, ok := s.Member("r1", "c1")
	require.True(t, ok)
	assert.Equal(t, "Alice B.", got.DisplayName)
}

func TestRoomStore_HostMigration(t *testing.T) {
	tests := []struct {
		name       string
		departures []string
		wantHosts  []string
	}{
		{
			name:       "host leaves, earliest remaining joiner succeeds",
			departures: []string{"c1"},
			wantHosts:  []string{"c2"},
		},
		{
			name:       "non-host leave keeps host",
			departures: []string{"c2"},
			wantHosts:  []string{""},
		},
		{
			name:       "successive host departures follow join order",
			departures: []string{"c1", "c2"},
			wantHosts:  []string{"c2", "c3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRoomStore()
			join(s, "r1", "c1", "Alice")
			join(s, "r1", "c2", "Bob")
			join(s, "r1", "c3", "Carol")

			for i, connID := range tt.departures {
				res := s.Leave("r1", connID)
				require.True(t, res.Removed)
				assert.Equal(t, tt.wantHosts[i], res.NewHostID)
			}
		})
	}
}

func TestRoomStore_HostValidityInvariant(t *testing.T) {
	s := NewRoomStore()
	join(s, "r1", "c1", "Alice")
	join(s, "r1", "c2", "Bob")

	checkInvariant := func() {
		host := s.Host("r1")
		members := s.Members("r1")
		if len(members) == 0 {
			assert.Empty(t, host)
			return
		}
		found := false
		for _, p := range members {
			if p.ConnectionID == host {
				found = true
			}
		}
		assert.True(t, found, "host %q must be a current member", host)
	}

	checkInvariant()
	s.Leave("r1", "c1")
	checkInvariant()
	join(s, "r1", "c3", "Carol")
	checkInvariant()
	s.Leave("r1", "c2")
	checkInvariant()
}

func TestRoomStore_LastLeaverReclaimsRoom(t *testing.T) {
	s := NewRoomStore()
	join(s, "r1", "c1", "Alice")

	res := s.Leave("r1", "c1")
	require.True(t, res.Removed)
	assert.True(t, res.Empty)
	assert.Empty(t, res.Remaining)

	rooms, participants := s.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, participants)

	// A later join to the same id starts a fresh room with a new host.
	others, hostID := join(s, "r1", "c9", "Zoe")
	assert.Empty(t, others)
	assert.Equal(t, "c9", hostID)
}

func TestRoomStore_LeaveUnknown(t *testing.T) {
	s := NewRoomStore()
	join(s, "r1", "c1", "Alice")

	assert.False(t, s.Leave("r1", "ghost").Removed)
	assert.False(t, s.Leave("nope", "c1").Removed)
	assert.Len(t, s.Members("r1"), 1)
}

func TestRoomStore_TransferHost(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		wantOK   bool
		wantHost string
	}{
		{name: "host transfers to member", from: "c1", to: "c2", wantOK: true, wantHost: "c2"},
		{name: "non-host caller refused", from: "c2", to: "c3", wantOK: false, wantHost: "c1"},
		{name: "transfer to non-member refused", from: "c1", to: "ghost", wantOK: false, wantHost: "c1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRoomStore()
			join(s, "r1", "c1", "Alice")
			join(s, "r1", "c2", "Bob")
			join(s, "r1", "c3", "Carol")

			members, ok := s.TransferHost("r1", tt.from, tt.to)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Len(t, members, 3)
			}
			assert.Equal(t, tt.wantHost, s.Host("r1"))
		})
	}
}

func TestRoomStore_EndMeeting(t *testing.T) {
	s := NewRoomStore()
	join(s, "r1", "c1", "Alice")
	join(s, "r1", "c2", "Bob")

	// Only the current host may end the meeting.
	_, ok := s.EndMeeting("r1", "c2")
	assert.False(t, ok)

	members, ok := s.EndMeeting("r1", "c1")
	require.True(t, ok)
	assert.Len(t, members, 2)

	// Host is cleared but members stay; the next joiner takes the role.
	assert.Empty(t, s.Host("r1"))
	assert.Len(t, s.Members("r1"), 2)

	_, hostID := join(s, "r1", "c3", "Carol")
	assert.Equal(t, "c3", hostID)
}

func TestRoomStore_RoomsAreIndependent(t *testing.T) {
	s := NewRoomStore()
	join(s, "r1", "c1", "Alice")
	join(s, "r2", "c2", "Bob")

	s.Leave("r1", "c1")

	rooms, participants := s.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, participants)
	assert.Equal(t, "c2", s.Host("r2"))
}
