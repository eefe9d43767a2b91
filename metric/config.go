package metric

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config defines the configuration for the metrics server.
type Config struct {
	Port     int           // Port for metrics server
	Path     string        // Path for metrics endpoint
	Interval time.Duration // Sampling interval of system metrics
}

// Default values for metrics configuration.
const (
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsInterval = 5 * time.Second
)

// ErrInvalidConfig is returned when the metrics configuration is invalid.
var ErrInvalidConfig = errors.New("invalid metrics config")

// Validate checks the port range, the path and the sampling interval.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with /, given %q: %w", c.Path, ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, given %s: %w", c.Interval, ErrInvalidConfig)
	}
	return nil
}
