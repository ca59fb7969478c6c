// internal/middleware/admin_auth.go
package middleware

import (
	"log/slog"
	"net/http"
	"slices"
)

// RequireRole lets the request through only when the authenticated user holds
// one of allowedRoles. It must run after RequireAuthentication.
func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				slog.Error("RequireRole: no user in context")
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if user.RoleName == nil || !slices.Contains(allowedRoles, *user.RoleName) {
				slog.Warn("Access denied: insufficient role", "userID", user.ID, "requiredRoles", allowedRoles, "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
