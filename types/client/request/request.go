// Package request defines structures for client request messages.
package request

import "encoding/json"

// Constants for request types
const (
	SUBSCRIBE   = "subscribe"
	UNSUBSCRIBE = "unsubscribe"
	PUBLISH     = "publish"
	PING        = "ping"
)

// Common is the envelope of every command sent over the websocket. Fields
// that a command does not use are left empty.
type Common struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	ClientID  string          `json:"client_id,omitempty"`
	LastN     *int            `json:"last_n,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
}

// Subscribe is data type for subscribing to a topic
type Subscribe struct {
	Topic    string
	ClientID string
	LastN    int
}

// Unsubscribe is data type for leaving a topic
type Unsubscribe struct {
	Topic    string
	ClientID string
}

// Publish is data type for publishing to a topic
type Publish struct {
	Topic   string
	Message json.RawMessage
}
