package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dragonfox-collabsync-server/domain"
)

type mockStore struct {
	persisted []domain.ChatMessage
	err       error
}

func (m *mockStore) Persist(_ context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if m.err != nil {
		return domain.ChatMessage{}, m.err
	}
	msg.ID = "msg-1"
	if msg.Kind == "" {
		if msg.ReceiverID == "" {
			msg.Kind = domain.KindBroadcast
		} else {
			msg.Kind = domain.KindDirect
		}
	}
	msg.CreatedAt = time.Unix(1700000000, 0).UTC()
	m.persisted = append(m.persisted, msg)
	return msg, nil
}

func TestRelay_Broadcast(t *testing.T) {
	registry := NewRegistry()
	sender := &mockConn{id: "c1"}
	peer1 := &mockConn{id: "c2"}
	peer2 := &mockConn{id: "c3"}
	registry.Register("alice", sender)
	registry.Register("bob", peer1)
	registry.Register("carol", peer2)

	store := &mockStore{}
	relay := NewRelay(registry, store, time.Second)

	err := relay.Relay(context.Background(), domain.ChatMessage{SenderID: "alice", Body: "hello"})
	require.NoError(t, err)

	// Broadcast reaches every registered connection, the sender included.
	for _, conn := range []*mockConn{sender, peer1, peer2} {
		require.Len(t, conn.getReceived(), 1, "conn %s", conn.ID())

		var got domain.ChatMessage
		require.NoError(t, json.Unmarshal(conn.getReceived()[0], &got))
		assert.Equal(t, "msg-1", got.ID)
		assert.Equal(t, "alice", got.SenderID)
		assert.Equal(t, domain.KindBroadcast, got.Kind)
	}
}

func TestRelay_Direct(t *testing.T) {
	registry := NewRegistry()
	sender := &mockConn{id: "c1"}
	receiver := &mockConn{id: "c2"}
	bystander := &mockConn{id: "c3"}
	registry.Register("alice", sender)
	registry.Register("bob", receiver)
	registry.Register("carol", bystander)

	relay := NewRelay(registry, &mockStore{}, time.Second)

	err := relay.Relay(context.Background(), domain.ChatMessage{SenderID: "alice", ReceiverID: "bob", Body: "hi"})
	require.NoError(t, err)

	assert.Len(t, receiver.getReceived(), 1)
	assert.Empty(t, sender.getReceived())
	assert.Empty(t, bystander.getReceived())
}

func TestRelay_RecipientOffline(t *testing.T) {
	registry := NewRegistry()
	sender := &mockConn{id: "c1"}
	registry.Register("alice", sender)

	store := &mockStore{}
	relay := NewRelay(registry, store, time.Second)

	// Recipient has no registered channel: message is durable but not
	// live-delivered, and the sender sees no error.
	err := relay.Relay(context.Background(), domain.ChatMessage{SenderID: "alice", ReceiverID: "bob", Body: "hi"})
	require.NoError(t, err)

	require.Len(t, store.persisted, 1)
	assert.Empty(t, sender.getReceived())
}

func TestRelay_PersistenceFailure(t *testing.T) {
	registry := NewRegistry()
	sender := &mockConn{id: "c1"}
	peer := &mockConn{id: "c2"}
	registry.Register("alice", sender)
	registry.Register("bob", peer)

	relay := NewRelay(registry, &mockStore{err: errors.New("db down")}, time.Second)

	err := relay.Relay(context.Background(), domain.ChatMessage{SenderID: "alice", Body: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceFailed)

	assert.Empty(t, sender.getReceived(), "no delivery on persistence failure")
	assert.Empty(t, peer.getReceived())
}

func TestRelay_FullQueueDoesNotFail(t *testing.T) {
	registry := NewRegistry()
	stuck := &mockConn{id: "c1", sendErr: errors.New("send queue full")}
	healthy := &mockConn{id: "c2"}
	registry.Register("alice", stuck)
	registry.Register("bob", healthy)

	relay := NewRelay(registry, &mockStore{}, time.Second)

	err := relay.Relay(context.Background(), domain.ChatMessage{SenderID: "alice", Body: "hello"})
	require.NoError(t, err, "best-effort delivery never surfaces send errors")
	assert.Len(t, healthy.getReceived(), 1)
}
