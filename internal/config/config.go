// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) returns a Config populated with defaults.
//   - Load(ctx) layers defaults, an optional YAML file and environment variables.
//   - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"time"
)

// Default values. The backend origin and API key mirror what the dashboard
// shipped with before it was configurable.
const (
	DefaultBackendURL = "http://34.13.78.32"
	DefaultAPIKey     = "GCP-HEALTH-TEST-KEY"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile string `koanf:"log_file"`
	// LogJSON switches log output to JSON.
	LogJSON bool `koanf:"log_json"`
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`
	// BackendURL is the origin serving GET /health.
	BackendURL string `koanf:"backend_url" validate:"required,http_origin"`
	// DefaultAPIKey pre-fills the credential of new dashboard sessions. Empty
	// means sessions start idle until a key is entered.
	DefaultAPIKey string `koanf:"default_api_key"`
	// RequestTimeoutMS bounds a single backend fetch.
	RequestTimeoutMS int `koanf:"request_timeout_ms" validate:"gt=0"`
	// MessageTTLMS is how long a notification stays visible.
	MessageTTLMS int `koanf:"message_ttl_ms" validate:"gt=0"`
	// SessionTTLMS drops sessions idle for longer than this.
	SessionTTLMS int `koanf:"session_ttl_ms" validate:"gt=0"`
	// MaxSessions caps the number of sessions held in memory.
	MaxSessions int `koanf:"max_sessions" validate:"gt=0"`
	// RateLimitRPS and RateLimitBurst limit mutating requests per client IP.
	RateLimitRPS   int `koanf:"rate_limit_rps" validate:"gt=0"`
	RateLimitBurst int `koanf:"rate_limit_burst" validate:"gt=0"`
}

// New creates a Config with defaults. Context is accepted first to follow the
// project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		BackendURL:       DefaultBackendURL,
		DefaultAPIKey:    DefaultAPIKey,
		RequestTimeoutMS: 15_000,
		MessageTTLMS:     6_000,
		SessionTTLMS:     30 * 60 * 1000,
		MaxSessions:      10_000,
		RateLimitRPS:     5,
		RateLimitBurst:   10,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// MessageTTL returns MessageTTLMS as a duration.
func (c *Config) MessageTTL() time.Duration {
	return time.Duration(c.MessageTTLMS) * time.Millisecond
}

// SessionTTL returns SessionTTLMS as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMS) * time.Millisecond
}
