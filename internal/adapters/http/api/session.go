package api

import (
	"context"
	"net/http"
)

// SessionCookie names the cookie that carries the dashboard session id.
const SessionCookie = "gcpstatus_session"

// SessionStore resolves or creates dashboard sessions.
type SessionStore interface {
	EnsureSession(ctx context.Context, id string) (sid string, created bool)
}

// ResolveSession returns the session of the request, creating one and
// setting the cookie when the browser has none or presents a stale id.
func ResolveSession(w http.ResponseWriter, r *http.Request, store SessionStore) string {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}

	sid, created := store.EnsureSession(r.Context(), id)
	if created || sid != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sid
}
