// Package handler upgrades HTTP requests to websocket connections.
package handler

import (
	"log/slog"
	"net/http"

	"pubsub/pkg/socket"
	"pubsub/server/controller"
)

// Handler hands upgraded connections to a controller.
type Handler struct {
	controller controller.Processor
	logger     *slog.Logger
}

// New creates a new Handler.
func New(c controller.Processor, logger *slog.Logger) *Handler {
	return &Handler{
		controller: c,
		logger:     logger,
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := socket.Upgrade(w, r)
	if err != nil {
		h.logger.Debug("failed to upgrade connection", "error", err)
		return
	}
	defer func() {
		if err := ws.Close(); err != nil && !socket.IsClosedError(err) {
			h.logger.Debug("failed to close connection", "handle", ws.ID(), "error", err)
		}
	}()

	go ws.WriteLoop()
	if err := h.controller.Process(r.Context(), ws); err != nil {
		h.logger.Warn("connection ended with error", "handle", ws.ID(), "error", err)
	}
}
