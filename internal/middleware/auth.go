// internal/middleware/auth.go
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"gymhub.np/internal/db"
	"gymhub.np/internal/models"

	"github.com/alexedwards/scs/v2"
)

type contextKey string

const UserIDContextKey contextKey = "userID"
const UserContextKey contextKey = "user"
const SubscriptionContextKey contextKey = "subscription"

// UserFromContext returns the user loaded by RequireAuthentication or InjectUserData.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

// SubscriptionFromContext returns the entitlement found by RequireActiveSubscription.
func SubscriptionFromContext(ctx context.Context) *models.UserSubscription {
	sub, _ := ctx.Value(SubscriptionContextKey).(*models.UserSubscription)
	return sub
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func RequireAuthentication(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := sessionManager.GetString(r.Context(), string(UserIDContextKey))
			if userID == "" {
				slog.Warn("Access denied: user not authenticated", "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			user, err := db.GetUserByID(r.Context(), userID)
			if err != nil {
				slog.Error("RequireAuthentication: failed to load user", "userID", userID, "error", err)
				writeJSONError(w, http.StatusInternalServerError, "could not load session user")
				return
			}
			if user == nil {
				slog.Warn("RequireAuthentication: session points to a missing user", "userID", userID)
				sessionManager.Remove(r.Context(), string(UserIDContextKey))
				writeJSONError(w, http.StatusUnauthorized, "session is no longer valid")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			ctx = context.WithValue(ctx, UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InjectUserData loads the session user when there is one and never rejects the request.
func InjectUserData(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if UserFromContext(ctx) != nil {
				next.ServeHTTP(w, r)
				return
			}

			userID := sessionManager.GetString(ctx, string(UserIDContextKey))
			if userID != "" {
				user, err := db.GetUserByID(ctx, userID)
				if err != nil {
					slog.Warn("InjectUserData: error fetching user from session ID", "userID", userID, "error", err)
				} else if user != nil {
					ctx = context.WithValue(ctx, UserIDContextKey, userID)
					ctx = context.WithValue(ctx, UserContextKey, user)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
