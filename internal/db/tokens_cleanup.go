// internal/db/tokens_cleanup.go
package db

import (
	"context"
	"log/slog"
	"time"
)

// CleanupExpiredTokens deletes reset tokens that expired or were used more than a day ago.
func CleanupExpiredTokens(ctx context.Context) {
	if DB == nil {
		slog.Error("CleanupExpiredTokens: database is not initialized")
		return
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	res, err := DB.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at < ? OR (used = TRUE AND created_at < ?)`, time.Now(), cutoff)
	if err != nil {
		slog.Error("Failed to clean up reset tokens", "error", err)
		return
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		slog.Info("Removed stale reset tokens", "count", affected)
	}
}

// StartTokenCleanupScheduler runs CleanupExpiredTokens every interval until ctx is done.
func StartTokenCleanupScheduler(ctx context.Context, interval time.Duration) {
	slog.Info("Token cleanup scheduler started", "interval", interval.String())
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CleanupExpiredTokens(ctx)
			}
		}
	}()
}
