package api

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/okian/gcpstatus/pkg/logger"
	"github.com/okian/gcpstatus/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	maxIPRateLimiters = 10000
	retryAfterSeconds = "1"
)

// RateLimiter applies a token bucket per client IP. A nil *RateLimiter lets
// everything through.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	logger   logger.Logger
}

// NewRateLimiter allows requestsPerSecond sustained and burst requests at
// once for each client IP.
func NewRateLimiter(requestsPerSecond, burst int, l logger.Logger) *RateLimiter {
	if requestsPerSecond <= 0 || burst <= 0 {
		panic("rate limiter needs positive rate and burst")
	}
	if l == nil {
		l = logger.Nop()
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   l,
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, ok := rl.limiters[ip]
	rl.mu.RUnlock()
	if ok {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok = rl.limiters[ip]; ok {
		return limiter
	}
	if len(rl.limiters) >= maxIPRateLimiters {
		// Drop an arbitrary entry; map order is random.
		for old := range rl.limiters {
			delete(rl.limiters, old)
			break
		}
	}
	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = limiter
	return limiter
}

// Limit wraps next with the per-IP limit. Rejected requests get 429 with a
// Retry-After header.
func (rl *RateLimiter) Limit(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	if rl == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.limiterFor(ip).Allow() {
			metrics.RecordRateLimited(endpoint)
			rl.logger.Warn(r.Context(), "request rejected by rate limit",
				logger.String("remote_ip", ip),
				logger.String("path", r.URL.Path),
				logger.String("method", r.Method),
			)
			w.Header().Set("Retry-After", retryAfterSeconds)
			if wantsHTML(r) {
				http.Error(w, ErrRateLimitExceeded.Error(), http.StatusTooManyRequests)
				return
			}
			writeError(w, http.StatusTooManyRequests, "rate_limited", ErrRateLimitExceeded)
			return
		}
		next(w, r)
	}
}

// clientIP is the host part of RemoteAddr. Forwarding headers are not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// wantsHTML reports whether the request came from the page's forms rather
// than a JSON client.
func wantsHTML(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") ||
		strings.Contains(r.Header.Get("Accept"), "text/html")
}
