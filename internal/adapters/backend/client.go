// Package backend fetches the health report from the status backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/gcpstatus/internal/domain/health"
	"github.com/okian/gcpstatus/pkg/logger"
	"github.com/okian/gcpstatus/pkg/metrics"
)

// APIKeyHeader carries the credential on every request.
const APIKeyHeader = "x-api-key"

// HealthPath is appended to the backend origin.
const HealthPath = "/health"

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 1 << 20
	defaultUserAgent    = "gcpstatus-dashboard/1.0"
)

// Fetcher retrieves the current health map for a credential.
type Fetcher interface {
	Fetch(ctx context.Context, credential string) (health.Map, error)
}

// Client is the HTTP implementation of Fetcher. It never retries and never
// caches.
type Client struct {
	origin       string
	http         *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	userAgent    string
	logger       logger.Logger
}

var _ Fetcher = (*Client)(nil)

// New creates a client for the backend at origin, e.g. "http://10.0.0.5".
func New(origin string, opts ...Option) *Client {
	c := &Client{
		origin:       strings.TrimRight(origin, "/"),
		http:         &http.Client{},
		timeout:      defaultTimeout,
		maxBodyBytes: defaultMaxBodyBytes,
		userAgent:    defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	return c
}

// URL returns the health endpoint URL.
func (c *Client) URL() string { return c.origin + HealthPath }

// Fetch performs GET {origin}/health with the credential in the x-api-key
// header and decodes the response.
func (c *Client) Fetch(ctx context.Context, credential string) (health.Map, error) {
	if strings.TrimSpace(credential) == "" {
		metrics.RecordFetch(OutcomeEmptyCredential, 0)
		return nil, ErrEmptyCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	m, err := c.do(ctx, credential)
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000

	outcome := OutcomeOf(err)
	metrics.RecordFetch(outcome, elapsedMs)

	fields := []logger.Field{
		logger.String("url", c.URL()),
		logger.String("api_key", maskCredential(credential)),
		logger.String("outcome", outcome),
		logger.Float64("elapsed_ms", elapsedMs),
	}
	if err != nil {
		metrics.RecordErrorByComponent("backend", outcome)
		metrics.RecordErrorLatency("backend", outcome, elapsedMs)
		c.logger.Warn(ctx, "health fetch failed", append(fields, logger.Error(err))...)
		return nil, err
	}
	c.logger.Debug(ctx, "health fetch succeeded", append(fields, logger.Int("reported", m.Reported()))...)
	return m, nil
}

func (c *Client) do(ctx context.Context, credential string) (health.Map, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), http.NoBody)
	if err != nil {
		// Only a malformed origin gets here; surface it like any transport failure.
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set(APIKeyHeader, credential)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: unwrapURLError(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, &RequestFailedError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, &DecodeError{Err: fmt.Errorf("body exceeds %d bytes", c.maxBodyBytes)}
	}

	m, err := health.Decode(body)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return m, nil
}

// unwrapURLError drops the "Get \"http://...\":" prefix added by net/http,
// keeping the message short enough for a notification.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err
	}
	return err
}

// maskCredential keeps the first and last two characters of long keys.
func maskCredential(s string) string {
	const keep = 2
	if len(s) <= keep*2+2 {
		return strings.Repeat("*", len(s))
	}
	return s[:keep] + strings.Repeat("*", len(s)-keep*2) + s[len(s)-keep:]
}
