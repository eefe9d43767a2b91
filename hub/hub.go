package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"pubsub/broker"
	"pubsub/database/memory"
	"pubsub/metric"
	"pubsub/server"
)

// Hub contains the servers of the application.
type Hub struct {
	broker *broker.Broker
	server *server.Server
	metric *metric.Metrics
	logger *slog.Logger
}

// New creates a new instance of Hub.
func New(config Config, logger *slog.Logger) *Hub {
	db := memory.New()
	met := metric.New(config.Metrics, logger.With("component", "metric"))
	brk := broker.New(db, met, logger.With("component", "broker"))
	met.RegisterMetrics(brk)
	srv := server.New(config.Server, brk, met, logger.With("component", "server"))

	return &Hub{
		broker: brk,
		server: srv,
		metric: met,
		logger: logger,
	}
}

// Broker returns the broker served by the hub.
func (h *Hub) Broker() *broker.Broker {
	return h.broker
}

// Run serves the broker and the metrics until ctx is done or one of them
// fails.
func (h *Hub) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return h.metric.Start(ctx)
	})
	eg.Go(func() error {
		return h.metric.UpdateSystemMetrics(ctx)
	})
	eg.Go(func() error {
		return h.server.Start(ctx)
	})

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("failed to run hub: %w", err)
	}
	h.logger.Info("hub stopped", "topics", h.broker.Stats().Topics)
	return nil
}

// NewLogger creates a logger writing to w in the given format. Debug
// enables debug level.
func NewLogger(w io.Writer, format string, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
