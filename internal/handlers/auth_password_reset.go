// internal/handlers/auth_password_reset.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/auth"
	"gymhub.np/internal/db"
	"gymhub.np/internal/metrics"
	"gymhub.np/internal/models"
	"gymhub.np/internal/validation"
)

const resetRequestedMessage = "If that email is registered, a password reset link is on its way."

// ForgotPasswordHandler answers the same way whether or not the address is known.
func (app *AppHandlers) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		WriteError(w, r, apperrors.ValidationFields("invalid email", fields), false)
		return
	}

	user, err := db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("Password reset lookup failed", "email", req.Email, "error", err)
	} else if user == nil {
		slog.Info("Password reset requested for unknown email", "email", req.Email)
	} else {
		app.issueResetToken(r.Context(), user)
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": resetRequestedMessage})
}

func (app *AppHandlers) issueResetToken(ctx context.Context, user *models.User) {
	rawToken, err := auth.GenerateSecureToken(32)
	if err != nil {
		slog.Error("Failed to generate reset token", "userID", user.ID, "error", err)
		return
	}
	expiresAt := app.now().Add(auth.ResetTokenTTL)
	if err := db.CreatePasswordReset(ctx, user.Email, auth.HashToken(rawToken), expiresAt); err != nil {
		slog.Error("Failed to store reset token", "userID", user.ID, "error", err)
		return
	}
	if app.Notifier == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, app.sendTimeout())
	defer cancel()
	if err := app.Notifier.SendPasswordReset(sendCtx, user.Email, user.Name, rawToken); err != nil {
		metrics.EmailsSent.WithLabelValues("password_reset", "error").Inc()
		slog.Error("Failed to send reset email", "userID", user.ID, "error", err)
		return
	}
	metrics.EmailsSent.WithLabelValues("password_reset", "ok").Inc()
}

func (app *AppHandlers) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		WriteError(w, r, apperrors.ValidationFields("invalid password reset", fields), false)
		return
	}

	reset, err := db.GetValidPasswordReset(r.Context(), auth.HashToken(req.Token), app.now())
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not reset password", err), false)
		return
	}
	if reset == nil {
		WriteError(w, r, apperrors.Validation("the reset link is invalid or has expired"), false)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not reset password", err), false)
		return
	}
	if err := db.CompletePasswordReset(r.Context(), reset.ID, reset.Email, hash); err != nil {
		WriteError(w, r, storeFailure("could not reset password", err), false)
		return
	}
	slog.Info("Password reset completed", "email", reset.Email)
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Your password has been updated. Please log in."})
}
