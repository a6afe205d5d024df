// Package websocket adapts gorilla/websocket connections to the domain
// Session interface: a bounded outbound queue, read/write pumps, and
// single-shot teardown.
package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dragonfox-collabsync-server/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536
	sendQueueSize  = 256
)

// ErrSendQueueFull is returned by Send when the peer's outbound queue is
// full. The frame is dropped rather than blocking the caller.
var ErrSendQueueFull = errors.New("send queue full")

// Session is one live authenticated WebSocket connection.
type Session struct {
	id       string
	identity domain.Identity
	ws       *websocket.Conn
	send     chan []byte
	handler  domain.FrameHandler
	onClose  func(*Session)
	teardown sync.Once
}

// NewSession wraps an upgraded connection. onClose runs exactly once, from
// whichever path tears the session down first, and is where the caller
// unregisters the session from registries and rooms.
func NewSession(id string, identity domain.Identity, ws *websocket.Conn, handler domain.FrameHandler, onClose func(*Session)) *Session {
	return &Session{
		id:       id,
		identity: identity,
		ws:       ws,
		send:     make(chan []byte, sendQueueSize),
		handler:  handler,
		onClose:  onClose,
	}
}

// ID returns the transport session id.
func (s *Session) ID() string { return s.id }

// Identity returns the verified identity bound at the handshake.
func (s *Session) Identity() domain.Identity { return s.identity }

// Send queues a frame for delivery. Never blocks: a full queue drops the
// frame and reports ErrSendQueueFull.
func (s *Session) Send(data []byte) error {
	select {
	case s.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close tears the session down. Idempotent.
func (s *Session) Close() error {
	s.close()
	return nil
}

// Start launches the read and write pumps.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

func (s *Session) close() {
	s.teardown.Do(func() {
		if s.onClose != nil {
			s.onClose(s)
		}
		s.ws.Close()
	})
}

func (s *Session) readPump() {
	defer s.close()

	s.ws.SetReadLimit(maxMessageSize)
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "connId", s.id, "error", err)
			}
			return
		}

		s.handler.HandleFrame(s, data)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Reject closes a freshly upgraded connection that failed authentication,
// sending a policy-violation close frame with the reason first.
func Reject(ws *websocket.Conn, reason string) {
	deadline := time.Now().Add(writeWait)
	ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	ws.Close()
}
