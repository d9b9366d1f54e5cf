// Package site serves the server-rendered dashboard page and its form
// actions.
package site

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/okian/gcpstatus/internal/adapters/http/api"
	service "github.com/okian/gcpstatus/internal/app"
	"github.com/okian/gcpstatus/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("dashboard render failed")
)

// maxFormBody bounds form submissions.
const maxFormBody = 4 << 10

// Handler renders the dashboard for the session of each browser.
type Handler struct {
	deps   api.Dependencies
	tmpl   *template.Template
	logger logger.Logger
}

// NewHandler parses the embedded templates. It panics if they are broken,
// which can only happen at build time.
func NewHandler(deps api.Dependencies, l logger.Logger) *Handler {
	tmpl, err := parseTemplates()
	if err != nil {
		panic(err)
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Handler{deps: deps, tmpl: tmpl, logger: l}
}

// Register attaches the page and form routes to mux. Form posts go through
// limiter, which may be nil.
func (h *Handler) Register(_ context.Context, mux *http.ServeMux, limiter *api.RateLimiter) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(FS())))
	mux.HandleFunc("/", api.MetricsMiddleware(h.HandleIndex, "index"))
	mux.HandleFunc("/credential", api.MetricsMiddleware(limiter.Limit(h.post(h.setCredential), "credential"), "credential"))
	mux.HandleFunc("/refresh", api.MetricsMiddleware(limiter.Limit(h.post(h.refresh), "refresh"), "refresh"))
	mux.HandleFunc("/visibility", api.MetricsMiddleware(h.post(h.toggleVisibility), "visibility"))
	mux.HandleFunc("/dismiss", api.MetricsMiddleware(h.post(h.dismiss), "dismiss"))
}

// HandleIndex handles GET / and renders the dashboard.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	sid := api.ResolveSession(w, r, h.deps)
	v, err := h.deps.Visit(r.Context(), sid)
	if err != nil {
		h.logger.Error(r.Context(), "session lookup failed", logger.String("session", sid), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, newPageData(v)); err != nil {
		h.logger.Error(r.Context(), "render failed", logger.Error(errors.Join(ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// action mutates the session behind a form post.
type action func(r *http.Request, sid string) error

// post accepts a form submission, runs fn and redirects back to the page.
func (h *Handler) post(fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		sid := api.ResolveSession(w, r, h.deps)
		if err := fn(r, sid); err != nil && !errors.Is(err, service.ErrEmptyCredential) {
			// The empty-key prompt is already on the session as a notice.
			h.logger.Warn(r.Context(), "form action failed", logger.String("path", r.URL.Path), logger.Error(err))
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (h *Handler) setCredential(r *http.Request, sid string) error {
	_, err := h.deps.SetCredential(r.Context(), sid, r.PostForm.Get("api_key"))
	return err
}

// refresh applies a key typed but not yet submitted, which fetches on its
// own when it is not blank. Otherwise it refreshes with the stored key, so a
// blank key gets the enter-a-key prompt.
func (h *Handler) refresh(r *http.Request, sid string) error {
	changed, err := h.applyTypedKey(r, sid)
	if err != nil {
		return err
	}
	if changed && strings.TrimSpace(r.PostForm.Get("api_key")) != "" {
		return nil
	}
	_, err = h.deps.Refresh(r.Context(), sid)
	return err
}

func (h *Handler) toggleVisibility(r *http.Request, sid string) error {
	if _, err := h.applyTypedKey(r, sid); err != nil {
		return err
	}
	_, err := h.deps.ToggleKeyVisibility(sid)
	return err
}

func (h *Handler) dismiss(_ *http.Request, sid string) error {
	_, err := h.deps.DismissNotice(sid)
	return err
}

// applyTypedKey stores the api_key form field when present and different
// from the session's key.
func (h *Handler) applyTypedKey(r *http.Request, sid string) (bool, error) {
	if _, ok := r.PostForm["api_key"]; !ok {
		return false, nil
	}
	key := r.PostForm.Get("api_key")
	v, err := h.deps.Snapshot(sid)
	if err != nil {
		return false, err
	}
	if v.Credential == key {
		return false, nil
	}
	_, err = h.deps.SetCredential(r.Context(), sid, key)
	return true, err
}
