// internal/handlers/content_handlers.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/auth"
	"gymhub.np/internal/db"
	"gymhub.np/internal/models"
	"gymhub.np/internal/validation"
)

const defaultReviewLimit = 20

func (app *AppHandlers) ListTrainersHandler(w http.ResponseWriter, r *http.Request) {
	trainers, err := db.ListTrainers(r.Context())
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not load trainers", err), false)
		return
	}
	if trainers == nil {
		trainers = []models.Trainer{}
	}
	WriteJSON(w, http.StatusOK, trainers)
}

func (app *AppHandlers) ListReviewsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultReviewLimit
	}
	reviews, err := db.ListReviews(r.Context(), limit)
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not load reviews", err), false)
		return
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	WriteJSON(w, http.StatusOK, reviews)
}

func (app *AppHandlers) CreateReviewHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	req.Name = auth.SanitizeName(req.Name)
	req.Comment = strings.TrimSpace(req.Comment)
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		WriteError(w, r, apperrors.ValidationFields("invalid review", fields), false)
		return
	}

	review := &models.Review{Name: req.Name, Rating: req.Rating, Comment: req.Comment}
	if err := db.CreateReview(r.Context(), review); err != nil {
		WriteError(w, r, apperrors.Upstream("could not save review", err), false)
		return
	}
	WriteJSON(w, http.StatusCreated, review)
}

func (app *AppHandlers) ContactHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	req.Name = auth.SanitizeName(req.Name)
	req.Email = auth.NormalizeEmail(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		WriteError(w, r, apperrors.ValidationFields("invalid contact message", fields), false)
		return
	}

	msg := &models.ContactMessage{Name: req.Name, Email: req.Email, Message: req.Message}
	if err := db.CreateContactMessage(r.Context(), msg); err != nil {
		WriteError(w, r, apperrors.Upstream("could not save your message", err), false)
		return
	}
	slog.Info("Contact message received", "id", msg.ID, "email", msg.Email)
	WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Thank you, we will get back to you soon."})
}

// HealthzHandler reports whether the database answers within two seconds.
func (app *AppHandlers) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
