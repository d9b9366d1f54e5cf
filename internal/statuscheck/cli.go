package statuscheck

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/gcpstatus/internal/config"
	"github.com/okian/gcpstatus/pkg/logger"
)

const defaultTimeout = 15 * time.Second

// ParseFlags reads the command line. The backend and key default to the
// GCPSTATUS_BACKEND_URL and GCPSTATUS_DEFAULT_API_KEY environment variables.
func ParseFlags(args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("statuscheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { ShowHelp(stderr) }

	cfg := &Config{}
	fs.StringVar(&cfg.BackendURL, "url", envOr(config.EnvPrefix+"BACKEND_URL", config.DefaultBackendURL), "Backend origin serving /health")
	fs.StringVar(&cfg.APIKey, "key", envOr(config.EnvPrefix+"DEFAULT_API_KEY", config.DefaultAPIKey), "API key sent as x-api-key")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "Fetch timeout")
	fs.BoolVar(&cfg.JSON, "json", false, "Print JSON instead of a table")
	fs.StringVar(&cfg.LogFile, "log", "", "Also write logs to this file")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}

// SetupLogging sends logs to stderr and, optionally, to a rotated file so
// stdout stays machine readable.
func SetupLogging(cfg *Config) error {
	if err := logger.InitWithOptions(logger.Options{Writer: os.Stderr, File: cfg.LogFile}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "warn"
	if cfg.Verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

// Main runs the tool and returns the exit code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := ParseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitHealthy
	}
	if err != nil {
		return ExitUsage
	}
	if err := SetupLogging(cfg); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return ExitUsage
	}
	defer func() { _ = logger.Sync() }()

	res := NewRunner(cfg, nil, logger.Get()).Run(ctx, cfg.APIKey)

	write := WriteTable
	if cfg.JSON {
		write = WriteJSON
	}
	if err := write(stdout, res); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return ExitFailed
	}
	return res.ExitCode()
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `GCP Status Check
================

Fetches the backend health report once and prints the status of every
service.

Usage:
  statuscheck [options]

Options:
  -url string
        Backend origin (default $GCPSTATUS_BACKEND_URL or http://34.13.78.32)
  -key string
        API key (default $GCPSTATUS_DEFAULT_API_KEY or the built-in test key)
  -timeout duration
        Fetch timeout (default 15s)
  -json
        Print JSON instead of a table
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging

Exit codes:
  0  all services healthy
  1  at least one service unhealthy or unknown
  2  the fetch failed
  3  invalid usage
`)
}

// envOr returns the variable's value, or fallback when it is unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
