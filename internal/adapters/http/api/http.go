// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/gcpstatus/internal/app"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionStore

	Visit(ctx context.Context, id string) (View, error)
	Snapshot(id string) (View, error)
	SetCredential(ctx context.Context, id, key string) (View, error)
	Refresh(ctx context.Context, id string) (View, error)
	ToggleKeyVisibility(id string) (View, error)
	DismissNotice(id string) (View, error)
}

// View mirrors the session snapshot produced by the dashboard service.
type View = service.View

// Server wires HTTP routes for the JSON API and the ops endpoints.
type Server struct {
	healthHandler *HealthHandler
	statusHandler *StatusHandler
	limiter       *RateLimiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, probe LivenessProbe, limiter *RateLimiter) *Server {
	return &Server{
		healthHandler: NewHealthHandler(probe),
		statusHandler: NewStatusHandler(deps),
		limiter:       limiter,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/api/status", MetricsMiddleware(s.statusHandler.HandleGetStatus, "api_status"))
	mux.HandleFunc("/api/credential", MetricsMiddleware(s.limiter.Limit(s.statusHandler.HandlePutCredential, "api_credential"), "api_credential"))
	mux.HandleFunc("/api/refresh", MetricsMiddleware(s.limiter.Limit(s.statusHandler.HandlePostRefresh, "api_refresh"), "api_refresh"))
}

type credentialRequest struct {
	APIKey *string `json:"api_key"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
		fmt.Errorf("%w: %s", ErrMethodNotAllowed, r.Method))
}
