// Package controller handles websocket commands and REST requests.
package controller

import (
	"context"
	"net/http"

	"pubsub/pkg/socket"
)

// Controller is an interface for handling HTTP requests.
type Controller interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// Processor serves the commands of one websocket connection until it ends.
type Processor interface {
	Process(ctx context.Context, s socket.Socket) error
}
