// internal/handlers/user_profile_handlers.go
package handlers

import (
	"log/slog"
	"net/http"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/auth"
	"gymhub.np/internal/db"
	"gymhub.np/internal/middleware"
	"gymhub.np/internal/models"
	"gymhub.np/internal/validation"
)

func currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		WriteError(w, r, apperrors.Unauthorized("authentication required"), false)
	}
	return user
}

func (app *AppHandlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

func (app *AppHandlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req models.ProfileUpdateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	req.Name = auth.SanitizeName(req.Name)
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		WriteError(w, r, apperrors.ValidationFields("invalid profile", fields), false)
		return
	}

	if err := db.UpdateUserName(r.Context(), user.ID, req.Name); err != nil {
		WriteError(w, r, apperrors.Upstream("could not update profile", err), false)
		return
	}
	user.Name = req.Name
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (app *AppHandlers) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req models.PasswordChangeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		WriteError(w, r, apperrors.ValidationFields("invalid password change", fields), false)
		return
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		WriteError(w, r, apperrors.ValidationFields("invalid password change", map[string][]string{
			"currentPassword": {"The current password is incorrect."},
		}), false)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not change password", err), false)
		return
	}
	if err := db.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		WriteError(w, r, apperrors.Upstream("could not change password", err), false)
		return
	}
	if err := app.SessionManager.RenewToken(r.Context()); err != nil {
		slog.Warn("Failed to rotate session after password change", "userID", user.ID, "error", err)
	}
	slog.Info("Password changed", "userID", user.ID)
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// MySubscriptionsHandler lists the member's subscriptions and the one that is current, if any.
func (app *AppHandlers) MySubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	subs, err := db.ListSubscriptionsForUser(r.Context(), user.ID)
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not load subscriptions", err), false)
		return
	}
	current, err := db.FindCurrentActive(r.Context(), user.ID, app.now())
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not load subscriptions", err), false)
		return
	}
	if subs == nil {
		subs = []models.UserSubscription{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"subscriptions": subs, "current": current})
}

func (app *AppHandlers) MyPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	payments, err := db.ListPaymentsForUser(r.Context(), user.ID)
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not load payments", err), false)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	WriteJSON(w, http.StatusOK, payments)
}

// MyAccessHandler is the gym entry check. It sits behind RequireActiveSubscription.
func (app *AppHandlers) MyAccessHandler(w http.ResponseWriter, r *http.Request) {
	sub := middleware.SubscriptionFromContext(r.Context())
	if sub == nil {
		WriteError(w, r, apperrors.Unauthorized("an active membership is required"), false)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"access":       true,
		"plan":         sub.PlanName,
		"validUntil":   sub.EndDate,
		"subscription": sub,
	})
}
