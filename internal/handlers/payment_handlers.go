// internal/handlers/payment_handlers.go
package handlers

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/db"
	"gymhub.np/internal/membership"
	"gymhub.np/internal/metrics"
	"gymhub.np/internal/models"
	"gymhub.np/internal/payment_gateway/esewa"
)

// storePaymentRequest is the checkout page's record of a payment attempt.
// Amount stays raw so a quoted amount can be rejected.
type storePaymentRequest struct {
	UserID           string          `json:"userId"`
	SubscriptionID   string          `json:"subscriptionId"`
	SubscriptionName string          `json:"subscriptionName"`
	Amount           json.RawMessage `json:"amount"`
	TransactionID    string          `json:"transactionId"`
	Status           string          `json:"status"`
}

type verifyRequest struct {
	Amount           json.RawMessage `json:"amount"`
	RefID            string          `json:"refId"`
	UserID           string          `json:"userId"`
	SubscriptionName string          `json:"subscriptionName"`
	SubscriptionID   string          `json:"subscriptionId"`
}

// parseAmount accepts only a JSON number. An absent amount parses as zero and is
// rejected later with the other missing fields.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}
	if raw[0] == '"' {
		return decimal.Zero, apperrors.Validation("amount must be a number")
	}
	amount, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, apperrors.Validation("amount must be a number")
	}
	return amount, nil
}

// StorePaymentHandler records a checkout attempt or its outcome, idempotently by transactionId.
func (app *AppHandlers) StorePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req storePaymentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		WriteError(w, r, err, false)
		return
	}

	in := models.PaymentInput{
		UserID:           strings.TrimSpace(req.UserID),
		SubscriptionID:   strings.TrimSpace(req.SubscriptionID),
		SubscriptionName: strings.TrimSpace(req.SubscriptionName),
		Amount:           amount,
		ReferenceID:      strings.TrimSpace(req.TransactionID),
	}
	if err := db.ValidatePaymentInput(in); err != nil {
		WriteError(w, r, err, false)
		return
	}

	status := models.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	var payment *models.Payment
	switch status {
	case "", models.PaymentStatusPending:
		payment, err = db.CreateOrUpdatePending(r.Context(), in)
	case models.PaymentStatusSuccess, models.PaymentStatusFailed:
		payment, err = db.MarkOutcome(r.Context(), in.ReferenceID, status, in)
	default:
		err = apperrors.Validation("status must be pending, success or failed")
	}
	if err != nil {
		WriteError(w, r, storeFailure("could not save payment", err), false)
		return
	}

	metrics.PaymentsRecorded.WithLabelValues(string(payment.Status)).Inc()
	slog.Info("Payment stored", "referenceID", payment.ReferenceID, "userID", payment.UserID, "status", payment.Status)
	WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "payment": payment})
}

// PaymentStatusHandler lets the payment-success page look up a checkout by its
// transaction reference. Members only see their own payments.
func (app *AppHandlers) PaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	refID := strings.TrimSpace(r.PathValue("refId"))
	payment, err := db.GetPaymentByReference(r.Context(), refID)
	if err != nil {
		WriteError(w, r, apperrors.Upstream("could not load payment", err), false)
		return
	}
	if payment == nil || (payment.UserID != user.ID && !user.IsAdmin()) {
		WriteError(w, r, apperrors.NotFound("payment not found"), false)
		return
	}
	WriteJSON(w, http.StatusOK, payment)
}

// EsewaSignHandler signs the checkout form fields with the merchant secret.
func (app *AppHandlers) EsewaSignHandler(w http.ResponseWriter, r *http.Request) {
	var req esewa.SignRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	if req.TotalAmount == "" || req.TransactionUUID == "" || req.ProductCode == "" {
		WriteError(w, r, apperrors.Validation("Missing fields"), false)
		return
	}
	if app.Config.Esewa.SecretKey == "" {
		WriteError(w, r, apperrors.Upstream("payment gateway is not configured", nil), false)
		return
	}
	WriteJSON(w, http.StatusOK, esewa.SignFields(app.Config.Esewa.SecretKey, req))
}

// EsewaVerifyHandler completes a checkout: it marks the payment successful and
// activates or extends the subscription in one transaction.
func (app *AppHandlers) EsewaVerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err, false)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		WriteError(w, r, err, false)
		return
	}

	in := models.PaymentInput{
		UserID:           strings.TrimSpace(req.UserID),
		SubscriptionID:   strings.TrimSpace(req.SubscriptionID),
		SubscriptionName: strings.TrimSpace(req.SubscriptionName),
		Amount:           amount,
		ReferenceID:      strings.TrimSpace(req.RefID),
	}
	if in.ReferenceID == "" || in.UserID == "" || in.SubscriptionID == "" || !in.Amount.IsPositive() {
		WriteError(w, r, apperrors.Validation("refId, userId, subscriptionId and a positive amount are required"), false)
		return
	}

	if app.Gateway != nil {
		status, err := app.Gateway.CheckStatus(r.Context(), in.ReferenceID, in.Amount)
		if err != nil {
			WriteError(w, r, apperrors.Upstream("could not confirm the payment with eSewa", err), false)
			return
		}
		if !status.Completed() {
			slog.Warn("eSewa did not confirm payment", "referenceID", in.ReferenceID, "gatewayStatus", status.Status)
			if _, err := db.MarkOutcome(r.Context(), in.ReferenceID, models.PaymentStatusFailed, in); err != nil {
				slog.Error("Failed to mark unconfirmed payment as failed", "referenceID", in.ReferenceID, "error", err)
			} else {
				metrics.PaymentsRecorded.WithLabelValues(string(models.PaymentStatusFailed)).Inc()
			}
			WriteError(w, r, apperrors.Validation("payment was not completed: "+status.Status), false)
			return
		}
	}

	plan := app.lookupPlan(r.Context(), in.SubscriptionID)
	if plan != nil && in.SubscriptionName == "" {
		in.SubscriptionName = plan.Name
	}
	durationDays := membership.ResolveDurationDays(plan, in.SubscriptionName)

	payment, sub, err := db.VerifyAndActivate(r.Context(), db.VerifyInput{Payment: in, DurationDays: durationDays})
	if err != nil {
		WriteError(w, r, storeFailure("could not activate subscription", err), false)
		return
	}
	metrics.PaymentsRecorded.WithLabelValues(string(payment.Status)).Inc()
	metrics.SubscriptionsActivated.Inc()

	app.notifyActivated(r.Context(), payment.UserID, *sub)

	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "subscription": sub, "payment": payment})
}

// lookupPlan returns nil when the plan id is unknown or the catalog is unavailable,
// leaving the duration to be derived from the plan name.
func (app *AppHandlers) lookupPlan(ctx context.Context, planID string) *models.Plan {
	if app.Catalog == nil || planID == "" {
		return nil
	}
	plan, err := app.Catalog.GetPlan(ctx, planID)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindNotFound) {
			slog.Warn("Plan lookup failed during verification", "planID", planID, "error", err)
		}
		return nil
	}
	return plan
}

func (app *AppHandlers) notifyActivated(ctx context.Context, userID string, sub models.UserSubscription) {
	if app.Notifier == nil {
		return
	}
	user, err := db.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		slog.Warn("Skipping activation email, user not loaded", "userID", userID, "error", err)
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, app.sendTimeout())
	defer cancel()
	if err := app.Notifier.SendActivated(sendCtx, user.Email, user.Name, sub); err != nil {
		metrics.EmailsSent.WithLabelValues("activated", "error").Inc()
		slog.Error("Failed to send activation email", "userID", userID, "subscriptionID", sub.ID, "error", err)
		return
	}
	metrics.EmailsSent.WithLabelValues("activated", "ok").Inc()
}

// CheckExpirationHandler runs one reconciliation pass on demand.
func (app *AppHandlers) CheckExpirationHandler(w http.ResponseWriter, r *http.Request) {
	if secret := app.Config.Reconcile.TriggerSecret; secret != "" {
		got := r.Header.Get("X-Cron-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			WriteError(w, r, apperrors.Unauthorized("invalid trigger secret"), false)
			return
		}
	}

	res, err := app.Reconciler.Run(r.Context())
	if err != nil {
		WriteError(w, r, err, false)
		return
	}

	message := "Subscription check completed"
	if res.Skipped {
		message = "Another subscription check is already running"
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"message":              message,
		"emailsSent":           res.EmailsSent,
		"subscriptionsUpdated": res.SubscriptionsUpdated,
		"expiring":             res.Expiring,
		"expired":              res.Expired,
		"skipped":              res.Skipped,
	})
}

// storeFailure keeps classified store errors and reports the rest as upstream failures.
func storeFailure(message string, err error) error {
	if apperrors.KindOf(err) != apperrors.KindUpstream {
		return err
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Upstream(message, err)
}
