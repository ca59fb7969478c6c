// internal/middleware/subscription.go
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"gymhub.np/internal/db"
)

// RequireActiveSubscription rejects members without a current entitlement with 403.
// It must run after RequireAuthentication.
func RequireActiveSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			slog.Error("RequireActiveSubscription: no user in context")
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		sub, err := db.FindCurrentActive(r.Context(), user.ID, time.Now())
		if err != nil {
			slog.Error("RequireActiveSubscription: failed to load subscription", "userID", user.ID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "could not check your membership")
			return
		}
		if sub == nil {
			slog.Info("Access denied: no active membership", "userID", user.ID, "path", r.URL.Path)
			writeJSONError(w, http.StatusForbidden, "an active membership is required")
			return
		}

		ctx := context.WithValue(r.Context(), SubscriptionContextKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
