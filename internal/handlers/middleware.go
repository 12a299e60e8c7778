package handlers

import (
	"net/http"

	"github.com/debugmarathon/apiserver/internal/auth"
	"github.com/debugmarathon/apiserver/internal/services"
)

// SecurityHeaders sets the browser hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// RequireSession resolves the bearer token into an Identity and stores it in
// the request context.
func RequireSession(sessions *services.SessionResolver, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := sessions.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, r, opts, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole rejects callers whose session identity does not have role,
// or whose staff account is no longer approved.
// It must run after RequireSession.
func RequireRole(role string, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, r, opts, auth.ErrUnauthorized("Authorization required"))
				return
			}
			if err := services.RequireRole(identity, role); err != nil {
				writeError(w, r, opts, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
