package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// SessionCookie names the browser-session cookie used to count visitors once.
const SessionCookie = "imagelab_session"

type sessionContextKey struct{}

// Session copies an existing session cookie into the request context.
// It never creates one; see StartSession.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
			r = r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, c.Value))
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext returns the visitor session id, or "" for a new visitor.
func SessionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionContextKey{}).(string); ok {
		return v
	}
	return ""
}

// StartSession returns the caller's session id, issuing a session cookie
// (no Max-Age, so it ends with the browser session) when there is none.
// created reports whether the cookie was issued by this call.
func StartSession(w http.ResponseWriter, r *http.Request) (id string, created bool) {
	if id = SessionFromContext(r.Context()); id != "" {
		return id, false
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, false
	}
	id = uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id, true
}
