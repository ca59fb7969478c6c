// internal/handlers/auth.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/justinas/nosurf"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/auth"
	"gymhub.np/internal/db"
	"gymhub.np/internal/middleware"
	"gymhub.np/internal/models"
	"gymhub.np/internal/validation"
)

const genericLoginError = "invalid email or password"

// startSession rotates the session token and binds it to userID.
func (app *AppHandlers) startSession(r *http.Request, userID string) error {
	if err := app.SessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	app.SessionManager.Put(r.Context(), string(middleware.UserIDContextKey), userID)
	return nil
}

func (app *AppHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	req.Name = auth.SanitizeName(req.Name)
	req.Email = auth.NormalizeEmail(req.Email)
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		WriteError(w, r, apperrors.ValidationFields("invalid registration", fields), false)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not create account", err), false)
		return
	}

	role := models.RoleUser
	if app.Config.FirstAdminEmail != "" && req.Email == app.Config.FirstAdminEmail {
		role = models.RoleAdmin
	}

	user := &models.User{Name: req.Name, Email: req.Email, PasswordHash: hashedPassword}
	if err := db.CreateUser(r.Context(), user, role); err != nil {
		WriteError(w, r, storeFailure("could not create account", err), false)
		return
	}

	if err := app.startSession(r, user.ID); err != nil {
		slog.Error("Failed to start session after registration", "userID", user.ID, "error", err)
		WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user, "message": "Account created, please log in."})
		return
	}
	slog.Info("User registered and logged in", "userID", user.ID, "role", role)
	WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

func (app *AppHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		WriteError(w, r, apperrors.ValidationFields("invalid login", fields), false)
		return
	}

	user, err := db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not log in", err), false)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		slog.Warn("Failed login attempt", "email", req.Email)
		WriteError(w, r, apperrors.Unauthorized(genericLoginError), false)
		return
	}

	if err := app.startSession(r, user.ID); err != nil {
		WriteError(w, r, apperrors.Upstream("could not start session", err), false)
		return
	}
	slog.Info("User logged in", "userID", user.ID)
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (app *AppHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.SessionManager.Destroy(r.Context()); err != nil {
		WriteError(w, r, apperrors.Upstream("could not end session", err), false)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// CSRFTokenHandler hands the current CSRF token to the single-page front end.
func (app *AppHandlers) CSRFTokenHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"csrfToken": nosurf.Token(r)})
}
