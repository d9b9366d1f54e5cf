package api

import (
	"errors"
	"net/http"

	service "github.com/okian/gcpstatus/internal/app"
)

// maxCredentialBody bounds PUT /api/credential payloads.
const maxCredentialBody = 4 << 10

// StatusHandler serves the session snapshot and its mutations as JSON.
type StatusHandler struct {
	deps Dependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps Dependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

// HandleGetStatus handles GET /api/status. The first call of a session starts
// the initial fetch in the background, like the first page view does.
func (h *StatusHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	sid := ResolveSession(w, r, h.deps)
	v, err := h.deps.Visit(r.Context(), sid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandlePutCredential handles PUT /api/credential.
func (h *StatusHandler) HandlePutCredential(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_credential"
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}

	var req credentialRequest
	if err := decodeJSON(w, r, maxCredentialBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if req.APIKey == nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, errors.New("missing api_key")))
		return
	}

	sid := ResolveSession(w, r, h.deps)
	v, err := h.deps.SetCredential(r.Context(), sid, *req.APIKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandlePostRefresh handles POST /api/refresh. Fetch failures are part of
// the returned snapshot; only a blank key is an error here.
func (h *StatusHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	sid := ResolveSession(w, r, h.deps)
	v, err := h.deps.Refresh(r.Context(), sid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCredential):
		writeError(w, http.StatusBadRequest, "empty_credential", err)
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusConflict, "session_expired", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
