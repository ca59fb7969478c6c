// internal/handlers/admin/admin_users.go
package adminhandlers

import (
	"log/slog"
	"net/http"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/auth"
	"gymhub.np/internal/db"
	"gymhub.np/internal/handlers"
	"gymhub.np/internal/middleware"
	"gymhub.np/internal/models"
	"gymhub.np/internal/validation"
)

const (
	DefaultUsersPerPage = 20
	maxUsersPerPage     = 100
)

// writeError always carries the underlying error text; admin responses are for operators.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	handlers.WriteError(w, r, err, true)
}

func storeError(message string, err error) error {
	if apperrors.KindOf(err) != apperrors.KindUpstream {
		return err
	}
	return apperrors.Upstream(message, err)
}

func actorID(r *http.Request) string {
	if actor := middleware.UserFromContext(r.Context()); actor != nil {
		return actor.ID
	}
	return ""
}

func ListUsersHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := handlers.PageParams(r, DefaultUsersPerPage, maxUsersPerPage)
		users, total, err := db.ListUsers(r.Context(), limit, (page-1)*limit)
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not load users", err))
			return
		}
		if users == nil {
			users = []*models.User{}
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"users":      users,
			"total":      total,
			"page":       page,
			"limit":      limit,
			"pagination": db.BuildPagination(total, page, limit),
		})
	}
}

func GetUserHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := db.GetUserByID(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not load user", err))
			return
		}
		if user == nil {
			writeError(w, r, apperrors.NotFound("user not found"))
			return
		}
		handlers.WriteJSON(w, http.StatusOK, user)
	}
}

func decodeUserRequest(w http.ResponseWriter, r *http.Request) (*models.AdminUserRequest, bool) {
	var req models.AdminUserRequest
	if err := handlers.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return nil, false
	}
	req.Name = auth.SanitizeName(req.Name)
	req.Email = auth.NormalizeEmail(req.Email)
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		writeError(w, r, apperrors.ValidationFields("invalid user", fields))
		return nil, false
	}
	return &req, true
}

func CreateUserHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeUserRequest(w, r)
		if !ok {
			return
		}
		if req.Password == "" {
			writeError(w, r, apperrors.ValidationFields("invalid user", map[string][]string{"password": {"This field is required."}}))
			return
		}
		role := req.Role
		if role == "" {
			role = models.RoleUser
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not create user", err))
			return
		}
		user := &models.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
		if err := db.CreateUser(r.Context(), user, role); err != nil {
			writeError(w, r, storeError("could not create user", err))
			return
		}
		slog.Info("Admin created user", "adminID", actorID(r), "userID", user.ID, "role", role)
		handlers.WriteJSON(w, http.StatusCreated, user)
	}
}

func UpdateUserHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("id")
		req, ok := decodeUserRequest(w, r)
		if !ok {
			return
		}

		data := db.AdminUpdateUserData{Name: req.Name, Email: req.Email, RoleName: req.Role}
		if req.Password != "" {
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				writeError(w, r, apperrors.Upstream("could not update user", err))
				return
			}
			data.PasswordHash = hash
		}

		found, err := db.UpdateUserByAdmin(r.Context(), userID, data)
		if err != nil {
			writeError(w, r, storeError("could not update user", err))
			return
		}
		if !found {
			writeError(w, r, apperrors.NotFound("user not found"))
			return
		}
		user, err := db.GetUserByID(r.Context(), userID)
		if err != nil || user == nil {
			handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		handlers.WriteJSON(w, http.StatusOK, user)
	}
}

func DeleteUserHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("id")
		if actor := middleware.UserFromContext(r.Context()); actor != nil && actor.ID == userID {
			writeError(w, r, apperrors.Validation("you cannot delete your own account"))
			return
		}
		found, err := db.DeleteUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not delete user", err))
			return
		}
		if !found {
			writeError(w, r, apperrors.NotFound("user not found"))
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
