// internal/db/password_resets_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/models"
)

// CreatePasswordReset stores a reset token hash for email. Earlier unused
// tokens for the same address are invalidated.
func CreatePasswordReset(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	if DB == nil {
		return errNotInitialized
	}
	return withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE password_resets SET used = TRUE WHERE email = ? AND used = FALSE`, email); err != nil {
			return fmt.Errorf("failed to invalidate old reset tokens: %w", err)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO password_resets (email, token_hash, expires_at, used, created_at) VALUES (?, ?, ?, FALSE, ?)`,
			email, tokenHash, expiresAt, time.Now())
		if err != nil {
			slog.Error("Failed to store reset token", "email", email, "error", err)
			return fmt.Errorf("failed to store reset token: %w", err)
		}
		return nil
	})
}

// GetValidPasswordReset returns the unused, unexpired reset for tokenHash, or nil.
func GetValidPasswordReset(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	row := DB.QueryRowContext(ctx, `SELECT id, email, token_hash, expires_at, used, created_at
		FROM password_resets WHERE token_hash = ? AND used = FALSE AND expires_at > ?`, tokenHash, now)
	var r models.PasswordReset
	if err := row.Scan(&r.ID, &r.Email, &r.TokenHash, &r.ExpiresAt, &r.Used, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Failed to load reset token", "error", err)
		return nil, fmt.Errorf("failed to load reset token: %w", err)
	}
	return &r, nil
}

// CompletePasswordReset sets the new hash and burns the token in one transaction.
func CompletePasswordReset(ctx context.Context, resetID int64, email, passwordHash string) error {
	if DB == nil {
		return errNotInitialized
	}
	return withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE password_resets SET used = TRUE WHERE id = ? AND used = FALSE`, resetID)
		if err != nil {
			return fmt.Errorf("failed to consume reset token: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return apperrors.Validation("the reset link has already been used")
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`,
			passwordHash, time.Now(), email); err != nil {
			slog.Error("Failed to set password from reset", "email", email, "error", err)
			return fmt.Errorf("failed to update password: %w", err)
		}
		return nil
	})
}
