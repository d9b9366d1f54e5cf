package service

import (
	"strings"
	"time"

	"github.com/okian/gcpstatus/internal/adapters/backend"
	"github.com/okian/gcpstatus/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFetcher sets the health fetcher. Required.
func WithFetcher(f backend.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithMessageTTL sets how long a notice stays visible.
func WithMessageTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.messageTTL = d
		}
	}
}

// WithSessionTTL sets how long an idle session is kept.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithMaxSessions caps the number of sessions held in memory. The least
// recently used session is evicted when the cap is reached.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithDefaultCredential sets the API key a new session starts with. An empty
// key makes new sessions start on the welcome panel.
func WithDefaultCredential(key string) Option {
	return func(s *Service) {
		s.defaultCredential = strings.TrimSpace(key)
	}
}

// WithSweepInterval sets how often expired sessions are collected.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
