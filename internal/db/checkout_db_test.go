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

func verifyInput() VerifyInput {
	return VerifyInput{
		Payment: models.PaymentInput{
			UserID: "u1", SubscriptionID: "standard", SubscriptionName: "Standard Plan",
			Amount: decimal.NewFromInt(2500), ReferenceID: "txn_1",
		},
		DurationDays: 90,
	}
}

func TestVerifyAndActivate_CommitsAllWrites(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM payments WHERE reference_id = \? FOR UPDATE`).WithArgs("txn_1").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow("pay_1", "u1", "standard", "Standard Plan", "2500", "txn_1", "pending", now, now))
	mock.ExpectExec(`UPDATE payments SET status = \?`).WithArgs("success", sqlmock.AnyArg(), "pay_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_subscriptions`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM user_subscriptions WHERE user_id = \? AND reference_id = \?`).WithArgs("u1", "txn_1").
		WillReturnRows(subscriptionRow(sqlmock.NewRows(subscriptionCols), "sub_1", "active", now, now.AddDate(0, 0, 90)))
	mock.ExpectExec(`UPDATE users SET current_plan_id = \?`).WithArgs("standard", sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment, sub, err := VerifyAndActivate(context.Background(), verifyInput())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "sub_1", sub.ID)
}

func TestVerifyAndActivate_RollsBackOnFailure(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("txn_1").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow("pay_1", "u1", "standard", "Standard Plan", "2500", "txn_1", "pending", now, now))
	mock.ExpectExec(`UPDATE payments SET status = \?`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_subscriptions`).WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, _, err := VerifyAndActivate(context.Background(), verifyInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock wait timeout")
}

func TestVerifyAndActivate_TakesPlanFromStoredPayment(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	in := verifyInput()
	in.Payment.SubscriptionName = "Standard"

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("txn_1").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow("pay_1", "u1", "standard", "Standard Plan", "2500", "txn_1", "pending", now, now))
	mock.ExpectExec(`UPDATE payments SET status = \?`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_subscriptions`).
		WithArgs(sqlmock.AnyArg(), "u1", "standard", "Standard Plan", "2500", "txn_1", "active",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM user_subscriptions WHERE user_id = \? AND reference_id = \?`).WithArgs("u1", "txn_1").
		WillReturnRows(subscriptionRow(sqlmock.NewRows(subscriptionCols), "sub_1", "active", now, now.AddDate(0, 0, 90)))
	mock.ExpectExec(`UPDATE users SET current_plan_id = \?`).WithArgs("standard", sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, _, err := VerifyAndActivate(context.Background(), in)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAndActivate_RejectsMismatchedPayment(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*VerifyInput)
		want   string
	}{
		{"other member", func(in *VerifyInput) { in.Payment.UserID = "u2" }, "different member"},
		{"other plan", func(in *VerifyInput) { in.Payment.SubscriptionID = "premium" }, "different plan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := SetupMockDB(t)
			now := time.Now()

			mock.ExpectBegin()
			mock.ExpectQuery(`FOR UPDATE`).WithArgs("txn_1").
				WillReturnRows(sqlmock.NewRows(paymentCols).AddRow("pay_1", "u1", "standard", "Standard Plan", "2500", "txn_1", "pending", now, now))
			mock.ExpectRollback()

			in := verifyInput()
			tt.mutate(&in)
			_, _, err := VerifyAndActivate(context.Background(), in)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))
			assert.Contains(t, err.Error(), tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
