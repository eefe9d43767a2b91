// Package response provides data types for server frames sent to clients.
package response

import (
	"encoding/json"
	"time"
)

// Constants for response types
const (
	ACK   = "ack"
	EVENT = "event"
	ERROR = "error"
	PONG  = "pong"
	INFO  = "info"
)

// Ack statuses
const (
	SUBSCRIBED   = "subscribed"
	UNSUBSCRIBED = "unsubscribed"
	PUBLISHED    = "published"
)

// Error codes
const (
	BadRequest = "BAD_REQUEST"
	Internal   = "INTERNAL"
)

// Timestamp is a point in time encoded as an RFC3339 UTC string.
type Timestamp time.Time

// MarshalJSON encodes the timestamp in UTC with nanoseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON decodes an RFC3339 timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Ack acknowledges a command
type Ack struct {
	Type      string    `json:"type"`
	RequestID *string   `json:"request_id"`
	Topic     *string   `json:"topic"`
	Status    string    `json:"status"`
	TS        Timestamp `json:"ts"`
}

// Event carries a published message. Message is passed through unchanged.
type Event struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
	TS      Timestamp       `json:"ts"`
}

// ErrorDetail describes a failed command
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error reports a failed command. The connection stays open.
type Error struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Error     ErrorDetail `json:"error"`
	TS        Timestamp   `json:"ts"`
}

// Pong answers a ping
type Pong struct {
	Type      string    `json:"type"`
	RequestID *string   `json:"request_id"`
	TS        Timestamp `json:"ts"`
}

// Info is an unsolicited notice from the server
type Info struct {
	Type string    `json:"type"`
	Msg  string    `json:"msg"`
	TS   Timestamp `json:"ts"`
}

// NewAck creates an ack frame. An empty request id or topic encodes as null.
func NewAck(requestID, topic, status string) Ack {
	return Ack{
		Type:      ACK,
		RequestID: nullable(requestID),
		Topic:     nullable(topic),
		Status:    status,
		TS:        Now(),
	}
}

// NewEvent creates an event frame for a message published at ts.
func NewEvent(topic string, message json.RawMessage, ts time.Time) Event {
	return Event{
		Type:    EVENT,
		Topic:   topic,
		Message: message,
		TS:      Timestamp(ts),
	}
}

// NewError creates an error frame.
func NewError(requestID, code, message string) Error {
	return Error{
		Type:      ERROR,
		RequestID: requestID,
		Error:     ErrorDetail{Code: code, Message: message},
		TS:        Now(),
	}
}

// NewPong creates a pong frame.
func NewPong(requestID string) Pong {
	return Pong{
		Type:      PONG,
		RequestID: nullable(requestID),
		TS:        Now(),
	}
}

// NewInfo creates an info frame.
func NewInfo(msg string) Info {
	return Info{
		Type: INFO,
		Msg:  msg,
		TS:   Now(),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
