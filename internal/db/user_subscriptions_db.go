// internal/db/user_subscriptions_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gymhub.np/internal/models"
)

const subscriptionColumns = `id, user_id, plan_id, plan_name, amount, reference_id, status, start_date, end_date, last_notified_at, created_at, updated_at`

func scanSubscription(row scanner, extra ...any) (*models.UserSubscription, error) {
	var s models.UserSubscription
	var status string
	var lastNotified sql.NullTime
	dest := []any{&s.ID, &s.UserID, &s.PlanID, &s.PlanName, &s.Amount, &s.ReferenceID,
		&status, &s.StartDate, &s.EndDate, &lastNotified, &s.CreatedAt, &s.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	s.Status = models.SubscriptionStatus(status)
	if lastNotified.Valid {
		t := lastNotified.Time
		s.LastNotifiedAt = &t
	}
	return &s, nil
}

// activateOrExtend upserts on (user_id, reference_id). A repeat activation for the
// same reference refreshes status and end date and keeps the original start date.
func activateOrExtend(ctx context.Context, q querier, in models.ActivationInput, now time.Time) (*models.UserSubscription, error) {
	endDate := now.AddDate(0, 0, in.DurationDays)

	query := `
	INSERT INTO user_subscriptions (id, user_id, plan_id, plan_name, amount, reference_id, status, start_date, end_date, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		status = VALUES(status),
		end_date = VALUES(end_date),
		updated_at = VALUES(updated_at)`
	_, err := q.ExecContext(ctx, query,
		"sub_"+uuid.NewString()[:12], in.UserID, in.PlanID, in.PlanName, in.Amount, in.ReferenceID,
		models.SubscriptionStatusActive, now, endDate, now, now,
	)
	if err != nil {
		slog.Error("Failed to activate subscription", "userID", in.UserID, "referenceID", in.ReferenceID, "error", err)
		return nil, translateWriteError(err, "subscription")
	}

	row := q.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE user_id = ? AND reference_id = ?`,
		in.UserID, in.ReferenceID)
	sub, err := scanSubscription(row)
	if err != nil {
		slog.Error("Failed to reload subscription", "userID", in.UserID, "referenceID", in.ReferenceID, "error", err)
		return nil, fmt.Errorf("failed to reload subscription: %w", err)
	}
	return sub, nil
}

// ActivateOrExtend starts or refreshes the entitlement bought with in.ReferenceID.
func ActivateOrExtend(ctx context.Context, in models.ActivationInput) (*models.UserSubscription, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	return activateOrExtend(ctx, DB, in, time.Now())
}

// ListSubscriptionsForUser returns every subscription of the user, latest start first.
func ListSubscriptionsForUser(ctx context.Context, userID string) ([]models.UserSubscription, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE user_id = ? ORDER BY start_date DESC`, userID)
	if err != nil {
		slog.Error("Failed to list user subscriptions", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []models.UserSubscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

// FindCurrentActive returns the active subscription with the latest end date that
// has not yet ended at now, or nil.
func FindCurrentActive(ctx context.Context, userID string, now time.Time) (*models.UserSubscription, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	row := DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions
		WHERE user_id = ? AND status = ? AND end_date >= ?
		ORDER BY end_date DESC LIMIT 1`, userID, models.SubscriptionStatusActive, now)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Failed to find active subscription", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}
	return sub, nil
}

func listSubscriptionOwners(ctx context.Context, query string, args ...any) ([]models.SubscriptionOwner, error) {
	rows, err := DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := []models.SubscriptionOwner{}
	for rows.Next() {
		var o models.SubscriptionOwner
		s, err := scanSubscription(rows, &o.Email, &o.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription owner: %w", err)
		}
		o.Subscription = *s
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return owners, nil
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// ListExpiringSoon returns active subscriptions ending within window of now that
// have not been notified since notifiedBefore.
func ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration, notifiedBefore time.Time) ([]models.SubscriptionOwner, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	query := `SELECT ` + prefixed("s", subscriptionColumns) + `, u.email, u.name
		FROM user_subscriptions s JOIN users u ON u.id = s.user_id
		WHERE s.status = ? AND s.end_date BETWEEN ? AND ?
		AND (s.last_notified_at IS NULL OR s.last_notified_at < ?)
		ORDER BY s.end_date ASC`
	owners, err := listSubscriptionOwners(ctx, query, models.SubscriptionStatusActive, now, now.Add(window), notifiedBefore)
	if err != nil {
		slog.Error("Failed to list expiring subscriptions", "error", err)
		return nil, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}
	return owners, nil
}

// ListExpired returns subscriptions still marked active whose end date is before now.
func ListExpired(ctx context.Context, now time.Time) ([]models.SubscriptionOwner, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	query := `SELECT ` + prefixed("s", subscriptionColumns) + `, u.email, u.name
		FROM user_subscriptions s JOIN users u ON u.id = s.user_id
		WHERE s.status = ? AND s.end_date < ?
		ORDER BY s.end_date ASC`
	owners, err := listSubscriptionOwners(ctx, query, models.SubscriptionStatusActive, now)
	if err != nil {
		slog.Error("Failed to list expired subscriptions", "error", err)
		return nil, fmt.Errorf("failed to list expired subscriptions: %w", err)
	}
	return owners, nil
}

// MarkExpired flips an active subscription to expired. It reports false when the
// row was no longer active, so a concurrent run does not count it twice.
func MarkExpired(ctx context.Context, subscriptionID string, now time.Time) (bool, error) {
	if DB == nil {
		return false, errNotInitialized
	}
	res, err := DB.ExecContext(ctx, `UPDATE user_subscriptions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		models.SubscriptionStatusExpired, now, subscriptionID, models.SubscriptionStatusActive)
	if err != nil {
		slog.Error("Failed to expire subscription", "subscriptionID", subscriptionID, "error", err)
		return false, fmt.Errorf("failed to expire subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// MarkNotified stamps the last "expiring soon" notice.
func MarkNotified(ctx context.Context, subscriptionID string, at time.Time) error {
	if DB == nil {
		return errNotInitialized
	}
	_, err := DB.ExecContext(ctx, `UPDATE user_subscriptions SET last_notified_at = ? WHERE id = ?`, at, subscriptionID)
	if err != nil {
		slog.Error("Failed to stamp notification time", "subscriptionID", subscriptionID, "error", err)
		return fmt.Errorf("failed to stamp notification time: %w", err)
	}
	return nil
}

// SubscriptionStore exposes the reconciliation queries over the shared pool.
type SubscriptionStore struct{}

func (SubscriptionStore) ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration, notifiedBefore time.Time) ([]models.SubscriptionOwner, error) {
	return ListExpiringSoon(ctx, now, window, notifiedBefore)
}

func (SubscriptionStore) ListExpired(ctx context.Context, now time.Time) ([]models.SubscriptionOwner, error) {
	return ListExpired(ctx, now)
}

func (SubscriptionStore) MarkExpired(ctx context.Context, subscriptionID string, now time.Time) (bool, error) {
	return MarkExpired(ctx, subscriptionID, now)
}

func (SubscriptionStore) MarkNotified(ctx context.Context, subscriptionID string, at time.Time) error {
	return MarkNotified(ctx, subscriptionID, at)
}
