package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminToken is a middleware factory that requires the X-Admin-Token header to
// match token. An empty token disables the check.
func AdminToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "admin_auth")
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminTokenHeader)
			if got == "" {
				logger.Warn("admin token missing from request", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: admin token required", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warn("invalid admin token provided", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: invalid admin token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
