package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"pubsub/broker"
	"pubsub/metric"
	"pubsub/server/controller"
	"pubsub/server/handler"
	"pubsub/server/middleware"
)

const shutdownTimeout = 5 * time.Second

// Server contains the http server and its configuration.
type Server struct {
	server *http.Server
	conf   Config
	logger *slog.Logger
}

// New creates a new Server serving the broker.
func New(config Config, brk broker.Service, met *metric.Metrics, logger *slog.Logger) *Server {
	api := controller.NewAPI(brk, logger, config.Debug)
	ws := handler.New(controller.NewSocket(brk, met, logger), logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", api)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		ReadHeaderTimeout: 2 * time.Second,
		Handler:           middleware.Set(mux, middleware.NewLogger(logger), middleware.NewCORS(api.Routes())),
	}
	return &Server{
		server: srv,
		conf:   config,
		logger: logger,
	}
}

// Handler returns the root handler of the server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the server until ctx is done, then shuts it down. Open
// websocket connections are closed on shutdown.
func (s *Server) Start(ctx context.Context) error {
	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.server.BaseContext = func(net.Listener) context.Context {
		return base
	}
	s.server.RegisterOnShutdown(cancel)

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		stopped <- s.server.Shutdown(shutdownCtx)
	}()

	var err error
	if s.conf.TLS() {
		s.logger.Info("starting server with TLS", "port", s.conf.Port)
		err = s.server.ListenAndServeTLS(s.conf.CertFile, s.conf.KeyFile)
	} else {
		s.logger.Info("starting server without TLS", "port", s.conf.Port)
		err = s.server.ListenAndServe()
	}
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if err := <-stopped; err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
