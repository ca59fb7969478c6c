// internal/handlers/admin/admin_setup.go
package adminhandlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/auth"
	"gymhub.np/internal/db"
	"gymhub.np/internal/handlers"
	"gymhub.np/internal/models"
	"gymhub.np/internal/validation"
)

// SetupHandler creates an admin account, or promotes an existing user, when the
// request carries the configured X-Setup-Token. It is disabled without a token.
func SetupHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := app.Config.AdminSetupToken
		if token == "" {
			writeError(w, r, apperrors.NotFound("admin setup is disabled"))
			return
		}
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Setup-Token")), []byte(token)) != 1 {
			writeError(w, r, apperrors.Unauthorized("invalid setup token"))
			return
		}

		var req models.AdminSetupRequest
		if err := handlers.DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.Email = auth.NormalizeEmail(req.Email)
		req.Name = auth.SanitizeName(req.Name)
		if fields := validation.ValidateStruct(req); len(fields) > 0 {
			writeError(w, r, apperrors.ValidationFields("invalid admin setup", fields))
			return
		}

		existing, err := db.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not look up user", err))
			return
		}
		if existing != nil {
			if err := db.SetUserRole(r.Context(), existing.ID, models.RoleAdmin); err != nil {
				writeError(w, r, storeError("could not promote user", err))
				return
			}
			slog.Info("Existing user promoted to admin", "userID", existing.ID)
			handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "User promoted to admin", "userId": existing.ID})
			return
		}

		if req.Password == "" || req.Name == "" {
			writeError(w, r, apperrors.Validation("name and password are required to create a new admin"))
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not create admin", err))
			return
		}
		user := &models.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
		if err := db.CreateUser(r.Context(), user, models.RoleAdmin); err != nil {
			writeError(w, r, storeError("could not create admin", err))
			return
		}
		slog.Info("Admin account created through setup", "userID", user.ID)
		handlers.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Admin created", "userId": user.ID})
	}
}
