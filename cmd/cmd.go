// Package cmd parse args to configure application.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"pubsub/hub"
	"pubsub/metric"
	"pubsub/server"
)

// environment holds the values read from PUBSUB_* variables. They are the
// defaults of the command line flags.
type environment struct {
	Port            int           `env:"PUBSUB_PORT"`
	Debug           bool          `env:"PUBSUB_DEBUG"`
	CertFile        string        `env:"PUBSUB_CERT_FILE"`
	KeyFile         string        `env:"PUBSUB_KEY_FILE"`
	MetricsPort     int           `env:"PUBSUB_METRICS_PORT"`
	MetricsPath     string        `env:"PUBSUB_METRICS_PATH"`
	MetricsInterval time.Duration `env:"PUBSUB_METRICS_INTERVAL"`
	LogFormat       string        `env:"PUBSUB_LOG_FORMAT"`
}

// Run starts the application.
func Run() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	config, err := SetupConfig(os.Stderr, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := hub.NewLogger(os.Stdout, config.LogFormat, config.Server.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = hub.New(config, logger).Run(ctx); err != nil {
		logger.Error("application stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
}

// SetupConfig sets up and returns the configuration.
func SetupConfig(w io.Writer, args []string) (hub.Config, error) {
	config, err := Parse(w, args)
	if err != nil {
		return config, err
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Parse parses the environment and then the command line arguments.
func Parse(w io.Writer, args []string) (hub.Config, error) {
	defaults := environment{
		Port:            server.DefaultPort,
		MetricsPort:     metric.DefaultMetricsPort,
		MetricsPath:     metric.DefaultMetricsPath,
		MetricsInterval: metric.DefaultMetricsInterval,
		LogFormat:       hub.LogFormatText,
	}
	if err := env.Parse(&defaults); err != nil {
		return hub.Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	con := hub.Config{}
	fs := flag.NewFlagSet("pubsub", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.IntVar(&con.Server.Port, "port", defaults.Port, "listening port")
	fs.BoolVar(&con.Server.Debug, "debug", defaults.Debug, "debug mode")
	fs.StringVar(&con.Server.KeyFile, "key", defaults.KeyFile, "key file path")
	fs.StringVar(&con.Server.CertFile, "cert", defaults.CertFile, "cert file path")
	fs.IntVar(&con.Metrics.Port, "metrics-port", defaults.MetricsPort, "metrics listening port")
	fs.StringVar(&con.Metrics.Path, "metrics-path", defaults.MetricsPath, "metrics endpoint path")
	fs.DurationVar(&con.Metrics.Interval, "metrics-interval", defaults.MetricsInterval, "system metrics sampling interval")
	fs.StringVar(&con.LogFormat, "log-format", defaults.LogFormat, "log format, text or json")

	if err := fs.Parse(args); err != nil {
		return hub.Config{}, fmt.Errorf("failed to parse args: %w", err)
	}

	if fs.NArg() != 0 {
		return hub.Config{}, errors.New("some args are not parsed")
	}

	return con, nil
}
