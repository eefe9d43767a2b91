// Package metric provides Prometheus metrics collection and monitoring.
package metric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// Source reports the aggregate state of the broker.
type Source interface {
	TopicCount() int
	TotalSubscribers() int
	SessionCount() int
}

// Metrics contains the Prometheus metrics server and registered custom metrics.
type Metrics struct {
	httpServer *http.Server
	config     Config
	logger     *slog.Logger
	registry   *prometheus.Registry

	webSocketConnections prometheus.Gauge
	published            prometheus.Counter
	dropped              prometheus.Counter
	commands             *prometheus.CounterVec
	cpuUsage             prometheus.Gauge
	memoryUsage          prometheus.Gauge
	systemMemoryUsage    prometheus.Gauge
}

// New creates a new Metrics instance with the specified configuration.
func New(config Config, logger *slog.Logger) *Metrics {
	return &Metrics{
		config:   config,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		webSocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_websocket_connections",
			Help: "Current number of WebSocket connections.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_messages_published_total",
			Help: "Number of messages published to any topic.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_messages_dropped_total",
			Help: "Number of frames dropped on full subscriber queues.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_commands_total",
			Help: "Number of websocket commands handled.",
		}, []string{"type", "result"}), // Result: "ok" or an error code
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_cpu_usage_percentage",
			Help: "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_memory_usage_bytes",
			Help: "Current heap allocation of the process in bytes.",
		}),
		systemMemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_system_memory_used_bytes",
			Help: "Memory used on the host in bytes.",
		}),
	}
}

// RegisterMetrics registers custom metrics and the broker gauges read from src.
func (m *Metrics) RegisterMetrics(src Source) {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webSocketConnections,
		m.published,
		m.dropped,
		m.commands,
		m.cpuUsage,
		m.memoryUsage,
		m.systemMemoryUsage,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pubsub_topics",
			Help: "Current number of topics.",
		}, func() float64 { return float64(src.TopicCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pubsub_subscribers",
			Help: "Current number of subscriptions across all topics.",
		}, func() float64 { return float64(src.TotalSubscribers()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pubsub_sessions",
			Help: "Current number of connections with at least one subscription.",
		}, func() float64 { return float64(src.SessionCount()) }),
	)
}

// Handler returns the HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Start serves the metrics endpoint until ctx is cancelled.
func (m *Metrics) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())
	m.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", m.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := m.Stop(); err != nil {
			m.logger.Warn("failed to stop metrics server", "error", err)
		}
	}()

	m.logger.Info("starting metrics server", "port", m.config.Port, "path", m.config.Path)
	if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the metrics server.
func (m *Metrics) Stop() error {
	if m.httpServer != nil {
		m.logger.Info("stopping metrics server", "port", m.config.Port)
		return m.httpServer.Close()
	}
	return nil
}

// UpdateSystemMetrics samples cpu and memory usage every interval until ctx
// is cancelled.
func (m *Metrics) UpdateSystemMetrics(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		m.sampleSystem()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Metrics) sampleSystem() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryUsage.Set(float64(memStats.Alloc))

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.cpuUsage.Set(percents[0])
	} else if err != nil {
		m.logger.Debug("failed to sample cpu usage", "error", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		m.systemMemoryUsage.Set(float64(vm.Used))
	} else {
		m.logger.Debug("failed to sample system memory", "error", err)
	}
}

// IncrementWebSocketConnections increments the WebSocket connection count.
func (m *Metrics) IncrementWebSocketConnections() {
	m.webSocketConnections.Inc()
}

// DecrementWebSocketConnections decrements the WebSocket connection count.
func (m *Metrics) DecrementWebSocketConnections() {
	m.webSocketConnections.Dec()
}

// IncrementPublished counts a published message.
func (m *Metrics) IncrementPublished() {
	m.published.Inc()
}

// AddDropped counts frames dropped on full subscriber queues.
func (m *Metrics) AddDropped(n int) {
	if n > 0 {
		m.dropped.Add(float64(n))
	}
}

// IncrementCommands counts a handled websocket command by type and result.
func (m *Metrics) IncrementCommands(commandType, result string) {
	m.commands.WithLabelValues(commandType, result).Inc()
}
