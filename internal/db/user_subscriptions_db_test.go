package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymhub.np/internal/models"
)

var subscriptionCols = []string{"id", "user_id", "plan_id", "plan_name", "amount", "reference_id", "status",
	"start_date", "end_date", "last_notified_at", "created_at", "updated_at"}

func subscriptionRow(rows *sqlmock.Rows, id, status string, start, end time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "u1", "standard", "Standard Plan", "2500.00", "txn_1", status, start, end, nil, start, start)
}

func TestActivateOrExtend_UpsertsOnUserAndReference(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO user_subscriptions .* ON DUPLICATE KEY UPDATE status = VALUES\(status\), end_date = VALUES\(end_date\)`).
		WithArgs(sqlmock.AnyArg(), "u1", "standard", "Standard Plan", "2500", "txn_1", "active",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM user_subscriptions WHERE user_id = \? AND reference_id = \?`).
		WithArgs("u1", "txn_1").
		WillReturnRows(subscriptionRow(sqlmock.NewRows(subscriptionCols), "sub_1", "active", now, now.AddDate(0, 0, 90)))

	sub, err := ActivateOrExtend(context.Background(), models.ActivationInput{
		UserID: "u1", PlanID: "standard", PlanName: "Standard Plan",
		Amount: decimal.NewFromInt(2500), ReferenceID: "txn_1", DurationDays: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Nil(t, sub.LastNotifiedAt)
}

func TestFindCurrentActive_IgnoresStaleActiveRows(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	// The only row is active with an end date of yesterday, which the end_date filter excludes.
	mock.ExpectQuery(`WHERE user_id = \? AND status = \? AND end_date >= \?`).
		WithArgs("u1", "active", now).
		WillReturnRows(sqlmock.NewRows(subscriptionCols))

	sub, err := FindCurrentActive(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestFindCurrentActive_ReturnsLatest(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`ORDER BY end_date DESC LIMIT 1`).
		WithArgs("u1", "active", now).
		WillReturnRows(subscriptionRow(sqlmock.NewRows(subscriptionCols), "sub_2", "active", now, now.AddDate(0, 0, 10)))

	sub, err := FindCurrentActive(context.Background(), "u1", now)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.True(t, sub.IsCurrent(now))
}

func TestListSubscriptionsForUser(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()
	notified := now.Add(-time.Hour)

	rows := sqlmock.NewRows(subscriptionCols).
		AddRow("sub_2", "u1", "premium", "Premium Plan", "4000", "txn_2", "active", now, now.AddDate(1, 0, 0), notified, now, now).
		AddRow("sub_1", "u1", "basic", "Basic Plan", "1500", "txn_1", "expired", now.AddDate(0, -2, 0), now.AddDate(0, -1, 0), nil, now, now)
	mock.ExpectQuery(`FROM user_subscriptions WHERE user_id = \? ORDER BY start_date DESC`).WithArgs("u1").WillReturnRows(rows)

	subs, err := ListSubscriptionsForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "sub_2", subs[0].ID)
	require.NotNil(t, subs[0].LastNotifiedAt)
	assert.True(t, subs[0].Amount.Equal(decimal.NewFromInt(4000)))
	assert.Equal(t, models.SubscriptionStatusExpired, subs[1].Status)
}

func TestListExpiringSoon_JoinsOwner(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()
	window := 72 * time.Hour
	notifiedBefore := now.Add(-24 * time.Hour)

	cols := append(append([]string{}, subscriptionCols...), "email", "name")
	rows := sqlmock.NewRows(cols).
		AddRow("sub_a", "u1", "basic", "Basic Plan", "1500", "txn_a", "active", now, now.Add(24*time.Hour), nil, now, now, "ram@gym.np", "Ram")
	mock.ExpectQuery(`FROM user_subscriptions s JOIN users u ON u.id = s.user_id WHERE s.status = \? AND s.end_date BETWEEN \? AND \?`).
		WithArgs("active", now, now.Add(window), notifiedBefore).
		WillReturnRows(rows)

	owners, err := ListExpiringSoon(context.Background(), now, window, notifiedBefore)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "ram@gym.np", owners[0].Email)
	assert.Equal(t, "sub_a", owners[0].Subscription.ID)
}

func TestMarkExpired_ReportsTransition(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE user_subscriptions SET status = \?, updated_at = \? WHERE id = \? AND status = \?`).
		WithArgs("expired", now, "sub_b", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE user_subscriptions SET status = \?`).
		WithArgs("expired", now, "sub_b", "active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := MarkExpired(context.Background(), "sub_b", now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = MarkExpired(context.Background(), "sub_b", now)
	require.NoError(t, err)
	assert.False(t, changed, "a second run must not count the same transition")
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "s.id, s.user_id", prefixed("s", "id, user_id"))
}
