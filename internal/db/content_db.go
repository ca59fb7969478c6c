// internal/db/content_db.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gymhub.np/internal/models"
)

// Trainers

func ListTrainers(ctx context.Context) ([]models.Trainer, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.QueryContext(ctx, `SELECT id, name, image_url, created_at FROM trainers ORDER BY created_at ASC`)
	if err != nil {
		slog.Error("Failed to list trainers", "error", err)
		return nil, fmt.Errorf("failed to list trainers: %w", err)
	}
	defer rows.Close()

	trainers := []models.Trainer{}
	for rows.Next() {
		var tr models.Trainer
		if err := rows.Scan(&tr.ID, &tr.Name, &tr.ImageURL, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trainer: %w", err)
		}
		trainers = append(trainers, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trainers: %w", err)
	}
	return trainers, nil
}

func CreateTrainer(ctx context.Context, tr *models.Trainer) error {
	if DB == nil {
		return errNotInitialized
	}
	tr.ID = "trn_" + uuid.NewString()[:12]
	tr.CreatedAt = time.Now()
	_, err := DB.ExecContext(ctx, `INSERT INTO trainers (id, name, image_url, created_at) VALUES (?, ?, ?, ?)`,
		tr.ID, tr.Name, tr.ImageURL, tr.CreatedAt)
	if err != nil {
		slog.Error("Failed to create trainer", "name", tr.Name, "error", err)
		return fmt.Errorf("failed to create trainer: %w", err)
	}
	return nil
}

// DeleteTrainer reports false for an unknown id.
func DeleteTrainer(ctx context.Context, id string) (bool, error) {
	if DB == nil {
		return false, errNotInitialized
	}
	res, err := DB.ExecContext(ctx, `DELETE FROM trainers WHERE id = ?`, id)
	if err != nil {
		slog.Error("Failed to delete trainer", "trainerID", id, "error", err)
		return false, fmt.Errorf("failed to delete trainer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Reviews

func ListReviews(ctx context.Context, limit int) ([]models.Review, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.QueryContext(ctx, `SELECT id, name, rating, comment, created_at FROM reviews ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error("Failed to list reviews", "error", err)
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.Name, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

func CreateReview(ctx context.Context, r *models.Review) error {
	if DB == nil {
		return errNotInitialized
	}
	r.CreatedAt = time.Now()
	res, err := DB.ExecContext(ctx, `INSERT INTO reviews (name, rating, comment, created_at) VALUES (?, ?, ?, ?)`,
		r.Name, r.Rating, r.Comment, r.CreatedAt)
	if err != nil {
		slog.Error("Failed to create review", "error", err)
		return fmt.Errorf("failed to create review: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read review id: %w", err)
	}
	return nil
}

// Contact messages

func CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	if DB == nil {
		return errNotInitialized
	}
	m.CreatedAt = time.Now()
	res, err := DB.ExecContext(ctx, `INSERT INTO contact_messages (name, email, message, created_at) VALUES (?, ?, ?, ?)`,
		m.Name, m.Email, m.Message, m.CreatedAt)
	if err != nil {
		slog.Error("Failed to store contact message", "email", m.Email, "error", err)
		return fmt.Errorf("failed to store contact message: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read contact message id: %w", err)
	}
	return nil
}

func ListContactMessages(ctx context.Context, limit, offset int) ([]models.ContactMessage, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.QueryContext(ctx, `SELECT id, name, email, message, created_at FROM contact_messages ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		slog.Error("Failed to list contact messages", "error", err)
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.ContactMessage{}
	for rows.Next() {
		var m models.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contact messages: %w", err)
	}
	return msgs, nil
}
