// Package socket provides an interface for managing socket.
package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Default values for the socket.
const (
	DefaultSendBuffer = 256
	DefaultMaxMessage = 1 << 20 // 1 MB

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var (
	// ErrSendBufferFull is returned when the outgoing buffer cannot take another frame.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrClosed is returned when sending on a closed socket.
	ErrClosed = errors.New("socket closed")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// WebSocket wraps a gorilla websocket connection. Frames passed to Send are
// buffered and written by WriteLoop, so Send never waits on the network.
type WebSocket struct {
	id        string
	conn      *websocket.Conn
	out       chan any
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	waiters []func()
}

// Upgrade upgrades the HTTP request to a websocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade: %w", err)
	}
	return New(conn, DefaultSendBuffer), nil
}

// New wraps an established connection.
func New(conn *websocket.Conn, sendBuffer int) *WebSocket {
	if sendBuffer < 1 {
		sendBuffer = DefaultSendBuffer
	}
	conn.SetReadLimit(DefaultMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &WebSocket{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan any, sendBuffer),
		done: make(chan struct{}),
	}
}

// ID returns the unique id of the connection.
func (s *WebSocket) ID() string {
	return s.id
}

// Read blocks until the next text message arrives.
func (s *WebSocket) Read() ([]byte, error) {
	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage {
			return data, nil
		}
	}
}

// Send queues v to be written as JSON.
func (s *WebSocket) Send(v any) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.out <- v:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// WriteLoop writes queued frames and keepalive pings until the socket is
// closed or a write fails.
func (s *WebSocket) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case v := <-s.out:
			if err := s.write(v); err != nil {
				_ = s.Close()
				return
			}
			s.wake()
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = s.Close()
				return
			}
		}
	}
}

// Wait calls fn once the send buffer has room. It calls fn right away when
// there is room already, and drops it when the socket is closed.
func (s *WebSocket) Wait(fn func()) {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return
	default:
	}
	if len(s.out) < cap(s.out) {
		s.mu.Unlock()
		fn()
		return
	}
	s.waiters = append(s.waiters, fn)
	s.mu.Unlock()
}

func (s *WebSocket) wake() {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, fn := range waiters {
		fn()
	}
}

// write encodes v as one text message. HTML characters are left unescaped
// so published messages reach subscribers unchanged.
func (s *WebSocket) write(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := s.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Done is closed once the socket is closed.
func (s *WebSocket) Done() <-chan struct{} {
	return s.done
}

// Close closes the connection. Frames still buffered are discarded.
func (s *WebSocket) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.waiters = nil
		s.mu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// IsClosedError reports whether err means the peer went away.
func IsClosedError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, net.ErrClosed)
}
