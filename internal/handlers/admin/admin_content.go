// internal/handlers/admin/admin_content.go
package adminhandlers

import (
	"net/http"
	"strings"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/db"
	"gymhub.np/internal/handlers"
	"gymhub.np/internal/models"
	"gymhub.np/internal/validation"
)

func CreateTrainerHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.TrainerRequest
		if err := handlers.DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.ImageURL = strings.TrimSpace(req.ImageURL)
		if fields := validation.ValidateStruct(req); len(fields) > 0 {
			writeError(w, r, apperrors.ValidationFields("invalid trainer", fields))
			return
		}

		trainer := &models.Trainer{Name: req.Name, ImageURL: req.ImageURL}
		if err := db.CreateTrainer(r.Context(), trainer); err != nil {
			writeError(w, r, apperrors.Upstream("could not create trainer", err))
			return
		}
		handlers.WriteJSON(w, http.StatusCreated, trainer)
	}
}

func DeleteTrainerHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := db.DeleteTrainer(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not delete trainer", err))
			return
		}
		if !found {
			writeError(w, r, apperrors.NotFound("trainer not found"))
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func ListContactsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := handlers.PageParams(r, 50, 200)
		msgs, err := db.ListContactMessages(r.Context(), limit, (page-1)*limit)
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not load contact messages", err))
			return
		}
		handlers.WriteJSON(w, http.StatusOK, msgs)
	}
}
