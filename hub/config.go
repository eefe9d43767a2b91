// Package hub wires the broker, the servers and the metrics together.
package hub

import (
	"errors"
	"fmt"

	"pubsub/metric"
	"pubsub/server"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ErrInvalidLogFormat is returned when the log format is unknown.
var ErrInvalidLogFormat = errors.New("log format must be text or json")

// Config contains the configuration for the hub.
type Config struct {
	Server    server.Config
	Metrics   metric.Config
	LogFormat string
}

// Validate validates every part of the configuration.
func (c Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("given %q: %w", c.LogFormat, ErrInvalidLogFormat)
	}
	return nil
}
