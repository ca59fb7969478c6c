// internal/db/checkout_db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"gymhub.np/internal/models"
)

// VerifyInput describes a checkout the gateway has confirmed.
type VerifyInput struct {
	Payment      models.PaymentInput
	DurationDays int
}

// VerifyAndActivate marks the payment successful, activates or extends the
// subscription and points the user at the plan, all in one transaction. The
// plan comes from the stored payment when there is one.
func VerifyAndActivate(ctx context.Context, in VerifyInput) (*models.Payment, *models.UserSubscription, error) {
	if DB == nil {
		return nil, nil, errNotInitialized
	}

	var payment *models.Payment
	var sub *models.UserSubscription
	err := withTx(ctx, func(tx *sql.Tx) error {
		var err error
		payment, err = markOutcome(ctx, tx, in.Payment.ReferenceID, models.PaymentStatusSuccess, in.Payment)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusSuccess {
			return fmt.Errorf("payment %s is %s after verification", payment.ReferenceID, payment.Status)
		}

		planID, planName := payment.SubscriptionID, payment.SubscriptionName
		if planID == "" {
			planID, planName = in.Payment.SubscriptionID, in.Payment.SubscriptionName
		}

		now := time.Now()
		sub, err = activateOrExtend(ctx, tx, models.ActivationInput{
			UserID:       payment.UserID,
			PlanID:       planID,
			PlanName:     planName,
			Amount:       payment.Amount,
			ReferenceID:  payment.ReferenceID,
			DurationDays: in.DurationDays,
		}, now)
		if err != nil {
			return err
		}

		if _, err = tx.ExecContext(ctx, `UPDATE users SET current_plan_id = ?, updated_at = ? WHERE id = ?`,
			planID, now, payment.UserID); err != nil {
			slog.Error("Failed to set current plan", "userID", payment.UserID, "planID", planID, "error", err)
			return fmt.Errorf("failed to set current plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Checkout verified", "referenceID", payment.ReferenceID, "userID", payment.UserID, "subscriptionID", sub.ID, "endDate", sub.EndDate)
	return payment, sub, nil
}
