// internal/middleware/csrf.go
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/justinas/nosurf"
)

// NoSurfMiddleware adds CSRF protection to session-backed routes. exemptPaths are
// called by the payment gateway, cron or other non-browser clients.
func NoSurfMiddleware(next http.Handler, isProduction bool, exemptPaths ...string) http.Handler {
	csrfHandler := nosurf.New(next)
	csrfHandler.ExemptPaths(exemptPaths...)

	csrfHandler.SetBaseCookie(http.Cookie{
		HttpOnly: true,
		Path:     "/",
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Warn("CSRF token check failed", "path", r.URL.Path, "method", r.Method, "reason", nosurf.Reason(r))
		writeJSONError(w, http.StatusForbidden, "invalid or missing CSRF token")
	}))

	return csrfHandler
}
