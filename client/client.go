// Package client contains a websocket client of the broker. It is used by
// tests and tools.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lithammer/shortuuid/v4"

	"pubsub/types/client/request"
	"pubsub/types/client/response"
)

// Frame is any frame sent by the server. Fields that do not apply to the
// frame type are left empty.
type Frame struct {
	Type      string                `json:"type"`
	RequestID string                `json:"request_id"`
	Topic     string                `json:"topic"`
	Status    string                `json:"status"`
	Message   json.RawMessage       `json:"message"`
	Msg       string                `json:"msg"`
	Error     *response.ErrorDetail `json:"error"`
	TS        response.Timestamp    `json:"ts"`
}

// Client is a user of the broker.
type Client struct {
	serverURL string
	socket    *websocket.Conn
}

// New creates a new client of the server at host.
func New(host string) *Client {
	return &Client{
		serverURL: (&url.URL{Scheme: "ws", Host: host, Path: "/ws"}).String(),
	}
}

// Dial connects to the server.
func (c *Client) Dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	c.socket = conn
	return nil
}

// Subscribe sends a subscribe command and returns its request id. A
// negative lastN leaves last_n out of the command.
func (c *Client) Subscribe(topic, clientID string, lastN int) (string, error) {
	req := request.Common{
		Type:     request.SUBSCRIBE,
		Topic:    topic,
		ClientID: clientID,
	}
	if lastN >= 0 {
		req.LastN = &lastN
	}
	return c.Send(req)
}

// Unsubscribe sends an unsubscribe command and returns its request id.
func (c *Client) Unsubscribe(topic, clientID string) (string, error) {
	return c.Send(request.Common{
		Type:     request.UNSUBSCRIBE,
		Topic:    topic,
		ClientID: clientID,
	})
}

// Publish sends a publish command and returns its request id.
func (c *Client) Publish(topic string, message json.RawMessage) (string, error) {
	return c.Send(request.Common{
		Type:    request.PUBLISH,
		Topic:   topic,
		Message: message,
	})
}

// Ping sends a ping command and returns its request id.
func (c *Client) Ping() (string, error) {
	return c.Send(request.Common{Type: request.PING})
}

// Send writes the command, filling in a request id when it has none.
func (c *Client) Send(req request.Common) (string, error) {
	if req.RequestID == "" {
		req.RequestID = shortuuid.New()
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", req.Type, err)
	}
	if err := c.socket.WriteMessage(websocket.TextMessage, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to send %s: %w", req.Type, err)
	}
	return req.RequestID, nil
}

// SendRaw writes data as a text message as is.
func (c *Client) SendRaw(data []byte) error {
	if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Read waits up to timeout for the next frame.
func (c *Client) Read(timeout time.Duration) (Frame, error) {
	if err := c.socket.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Frame{}, fmt.Errorf("failed to set deadline: %w", err)
	}
	frame := Frame{}
	if err := c.socket.ReadJSON(&frame); err != nil {
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}
	return frame, nil
}

// Close closes the connection with a normal closure.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.socket.Close()
}
