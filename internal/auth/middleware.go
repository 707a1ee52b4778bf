// Package auth provides the HTTP middleware that authenticates admission
// API requests via bearer session tokens.
package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sujalmh/storectl/pkg/credential"
)

// Middleware authenticates the caller via a bearer session token issued by
// credential.TokenManager and stores the resulting principal ID in the
// request context. This is a single-path reduction of the teacher's
// multi-method authentication chain (PAT / session JWT / OIDC / API key /
// dev header): storectl principals have no equivalent to the teacher's
// API keys or per-tenant OIDC providers, so only the session-token path
// survives.
func Middleware(tokens *credential.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if raw == "" {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			principalID, err := tokens.ValidateToken(raw)
			if err != nil {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			ctx := credential.NewContext(r.Context(), principalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// respondErr writes a minimal JSON error body without depending on
// internal/httpserver, which itself mounts this middleware and would
// otherwise form an import cycle.
func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  errStr,
		"detail": message,
	})
}
