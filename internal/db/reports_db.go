// internal/db/reports_db.go
package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"gymhub.np/internal/models"
)

// GetAdminStats collects the dashboard counters. A failed counter is logged and
// left at zero so the rest of the dashboard still renders.
func GetAdminStats(ctx context.Context, now time.Time) (*models.AdminStats, error) {
	if DB == nil {
		return nil, errNotInitialized
	}

	stats := &models.AdminStats{TotalRevenue: decimal.Zero}

	if err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers); err != nil {
		slog.Error("Failed to count users for stats", "error", err)
	}

	thirtyDaysAgo := now.AddDate(0, 0, -30)
	if err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE created_at >= ?", thirtyDaysAgo).Scan(&stats.NewUsersLast30Days); err != nil {
		slog.Error("Failed to count new users for stats", "error", err)
	}

	if err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_subscriptions").Scan(&stats.TotalSubscriptions); err != nil {
		slog.Error("Failed to count subscriptions for stats", "error", err)
	}

	if err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_subscriptions WHERE status = ? AND end_date >= ?",
		models.SubscriptionStatusActive, now).Scan(&stats.ActiveSubscriptions); err != nil {
		slog.Error("Failed to count active subscriptions for stats", "error", err)
	}

	var revenue decimal.NullDecimal
	if err := DB.QueryRowContext(ctx, "SELECT COUNT(*), SUM(amount) FROM payments WHERE status = ?",
		models.PaymentStatusSuccess).Scan(&stats.TotalPayments, &revenue); err != nil {
		slog.Error("Failed to sum revenue for stats", "error", err)
	}
	if revenue.Valid {
		stats.TotalRevenue = revenue.Decimal
	}

	return stats, nil
}
