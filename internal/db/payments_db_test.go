package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/models"
)

var paymentCols = []string{"id", "user_id", "subscription_id", "subscription_name", "amount", "reference_id", "status", "created_at", "updated_at"}

func paymentRow(id, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(paymentCols).AddRow(id, "usr_1", "standard", "Standard Plan", "2500.00", "txn_1", status, now, now)
}

func pendingInput() models.PaymentInput {
	return models.PaymentInput{
		UserID:           "usr_1",
		SubscriptionID:   "standard",
		SubscriptionName: "Standard Plan",
		Amount:           decimal.NewFromInt(2500),
		ReferenceID:      "txn_1",
	}
}

// ==========================
// CreateOrUpdatePending
// ==========================

func TestCreateOrUpdatePending_SameReferenceKeepsOneRow(t *testing.T) {
	mock := SetupMockDB(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO payments .* ON DUPLICATE KEY UPDATE id = id`).
		WithArgs(sqlmock.AnyArg(), "usr_1", "standard", "Standard Plan", "2500", "txn_1", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM payments WHERE reference_id = \?`).WithArgs("txn_1").
		WillReturnRows(paymentRow("pay_first", "pending"))

	first, err := CreateOrUpdatePending(ctx, pendingInput())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, first.Status)

	// The gateway confirmed the payment before the page retried the store call.
	mock.ExpectExec(`INSERT INTO payments .* ON DUPLICATE KEY UPDATE id = id`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM payments WHERE reference_id = \?`).WithArgs("txn_1").
		WillReturnRows(paymentRow("pay_first", "success"))

	second, err := CreateOrUpdatePending(ctx, pendingInput())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.PaymentStatusSuccess, second.Status, "existing status must not be downgraded")
}

func TestCreateOrUpdatePending_ValidatesInput(t *testing.T) {
	SetupMockDB(t)

	in := pendingInput()
	in.UserID = ""
	in.SubscriptionID = ""
	in.SubscriptionName = " "
	in.Amount = decimal.Zero

	_, err := CreateOrUpdatePending(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	for _, field := range []string{"userId", "subscriptionId", "subscriptionName", "amount"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestCreateOrUpdatePending_WrapsDriverError(t *testing.T) {
	mock := SetupMockDB(t)
	mock.ExpectExec(`INSERT INTO payments`).WillReturnError(errors.New("connection reset"))

	_, err := CreateOrUpdatePending(context.Background(), pendingInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, apperrors.Is(err, apperrors.KindValidation))
}

// ==========================
// MarkOutcome
// ==========================

func TestMarkOutcome_PendingToSuccess(t *testing.T) {
	mock := SetupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM payments WHERE reference_id = \? FOR UPDATE`).WithArgs("txn_1").
		WillReturnRows(paymentRow("pay_1", "pending"))
	mock.ExpectExec(`UPDATE payments SET status = \?`).
		WithArgs("success", sqlmock.AnyArg(), "pay_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := MarkOutcome(context.Background(), "txn_1", models.PaymentStatusSuccess, models.PaymentInput{})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, p.Status)
}

func TestMarkOutcome_SuccessIsFinal(t *testing.T) {
	mock := SetupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("txn_1").
		WillReturnRows(paymentRow("pay_1", "success"))
	mock.ExpectCommit()

	p, err := MarkOutcome(context.Background(), "txn_1", models.PaymentStatusFailed, models.PaymentInput{})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, p.Status)
}

func TestMarkOutcome_FailedCanBeConfirmed(t *testing.T) {
	mock := SetupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("txn_1").
		WillReturnRows(paymentRow("pay_1", "failed"))
	mock.ExpectExec(`UPDATE payments SET status = \?`).
		WithArgs("success", sqlmock.AnyArg(), "pay_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := MarkOutcome(context.Background(), "txn_1", models.PaymentStatusSuccess, models.PaymentInput{})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, p.Status)
}

func TestMarkOutcome_BackfillsMissingPayment(t *testing.T) {
	mock := SetupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("txn_9").
		WillReturnRows(sqlmock.NewRows(paymentCols))
	mock.ExpectExec(`INSERT INTO payments`).
		WithArgs(sqlmock.AnyArg(), "usr_1", "standard", "Standard Plan", "2500", "txn_9", "failed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	details := pendingInput()
	details.ReferenceID = ""
	p, err := MarkOutcome(context.Background(), "txn_9", models.PaymentStatusFailed, details)
	require.NoError(t, err)
	assert.Equal(t, "txn_9", p.ReferenceID)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)
}

func TestMarkOutcome_BackfillRequiresDetails(t *testing.T) {
	mock := SetupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("txn_9").
		WillReturnRows(sqlmock.NewRows(paymentCols))
	mock.ExpectRollback()

	_, err := MarkOutcome(context.Background(), "txn_9", models.PaymentStatusSuccess, models.PaymentInput{UserID: "usr_1"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestMarkOutcome_RejectsPendingOutcome(t *testing.T) {
	mock := SetupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := MarkOutcome(context.Background(), "txn_1", models.PaymentStatusPending, models.PaymentInput{})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

// ==========================
// Listings
// ==========================

func TestListPayments_WhitelistsSortAndPaginates(t *testing.T) {
	mock := SetupMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments WHERE \(LOWER\(subscription_name\) LIKE \? OR LOWER\(reference_id\) LIKE \?\) AND status = \?`).
		WithArgs("%premium%", "%premium%", "success").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`ORDER BY amount ASC LIMIT \? OFFSET \?`).
		WithArgs("%premium%", "%premium%", "success", 2, 2).
		WillReturnRows(paymentRow("pay_3", "success"))

	payments, total, err := ListPayments(context.Background(), models.PaymentFilter{
		SortBy: "amount", SortOrder: "asc", Search: "Premium", Status: models.PaymentStatusSuccess, Limit: 2, Page: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, payments, 1)
	assert.Equal(t, "pay_3", payments[0].ID)
}

func TestListPayments_UnknownSortFallsBack(t *testing.T) {
	mock := SetupMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \? OFFSET \?`).
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows(paymentCols))

	payments, total, err := ListPayments(context.Background(), models.PaymentFilter{SortBy: "amount; DROP TABLE payments"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, payments)
}

func TestBuildPagination(t *testing.T) {
	p := BuildPagination(250, 2, 100)
	assert.Equal(t, models.Pagination{CurrentPage: 2, TotalPages: 3, TotalPayments: 250, HasNextPage: true, HasPrevPage: true}, p)

	p = BuildPagination(0, 0, 0)
	assert.Equal(t, 1, p.CurrentPage)
	assert.False(t, p.HasNextPage)
}
