// internal/db/payments_db.go
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

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/models"
)

const paymentColumns = `id, user_id, subscription_id, subscription_name, amount, reference_id, status, created_at, updated_at`

const (
	defaultPaymentLimit = 100
	maxPaymentLimit     = 500
)

// Sort keys accepted by ListPayments, mapped to their columns.
var paymentSortColumns = map[string]string{
	"createdAt":        "created_at",
	"amount":           "amount",
	"status":           "status",
	"subscriptionName": "subscription_name",
}

func newPaymentID() string {
	return "pay_" + uuid.NewString()[:12]
}

func scanPayment(row scanner) (*models.Payment, error) {
	var p models.Payment
	var status string
	if err := row.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &p.SubscriptionName,
		&p.Amount, &p.ReferenceID, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func translateWriteError(err error, what string) error {
	switch {
	case isMySQLError(err, errDuplicateEntry):
		return apperrors.Conflict(what + " already exists")
	case isMySQLError(err, errNoReferencedRow):
		return apperrors.Validation(what + " references an unknown user")
	}
	return fmt.Errorf("failed to save %s: %w", what, err)
}

func getPaymentByReference(ctx context.Context, q querier, referenceID string, forUpdate bool) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference_id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanPayment(q.QueryRowContext(ctx, query, referenceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Failed to load payment by reference", "referenceID", referenceID, "error", err)
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return p, nil
}

// GetPaymentByReference returns nil, nil when no payment carries referenceID.
func GetPaymentByReference(ctx context.Context, referenceID string) (*models.Payment, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	return getPaymentByReference(ctx, DB, referenceID, false)
}

// ValidatePaymentInput reports every required field the checkout page left out.
func ValidatePaymentInput(in models.PaymentInput) error {
	var missing []string
	if strings.TrimSpace(in.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(in.SubscriptionID) == "" {
		missing = append(missing, "subscriptionId")
	}
	if strings.TrimSpace(in.SubscriptionName) == "" {
		missing = append(missing, "subscriptionName")
	}
	if strings.TrimSpace(in.ReferenceID) == "" {
		missing = append(missing, "transactionId")
	}
	if !in.Amount.IsPositive() {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return apperrors.Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// CreateOrUpdatePending records a checkout attempt. A payment that already exists
// for the reference is returned untouched, whatever its status.
func CreateOrUpdatePending(ctx context.Context, in models.PaymentInput) (*models.Payment, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	if err := ValidatePaymentInput(in); err != nil {
		return nil, err
	}

	now := time.Now()
	query := `
	INSERT INTO payments (` + paymentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE id = id`
	_, err := DB.ExecContext(ctx, query,
		newPaymentID(), in.UserID, in.SubscriptionID, in.SubscriptionName,
		in.Amount, in.ReferenceID, models.PaymentStatusPending, now, now,
	)
	if err != nil {
		slog.Error("Failed to record pending payment", "referenceID", in.ReferenceID, "userID", in.UserID, "error", err)
		return nil, translateWriteError(err, "payment")
	}

	p, err := getPaymentByReference(ctx, DB, in.ReferenceID, false)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("payment %s vanished after insert", in.ReferenceID)
	}
	return p, nil
}

// markOutcome applies outcome to the payment for referenceID inside tx. When no
// payment exists it is created directly in the terminal state from details.
func markOutcome(ctx context.Context, tx *sql.Tx, referenceID string, outcome models.PaymentStatus, details models.PaymentInput) (*models.Payment, error) {
	if !outcome.IsTerminal() {
		return nil, apperrors.Validation("payment outcome must be success or failed")
	}

	existing, err := getPaymentByReference(ctx, tx, referenceID, true)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	if existing == nil {
		details.ReferenceID = referenceID
		if err := ValidatePaymentInput(details); err != nil {
			return nil, err
		}
		p := &models.Payment{
			ID:               newPaymentID(),
			UserID:           details.UserID,
			SubscriptionID:   details.SubscriptionID,
			SubscriptionName: details.SubscriptionName,
			Amount:           details.Amount,
			ReferenceID:      referenceID,
			Status:           outcome,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, p.SubscriptionID, p.SubscriptionName, p.Amount, p.ReferenceID, p.Status, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			slog.Error("Failed to backfill payment", "referenceID", referenceID, "outcome", outcome, "error", err)
			return nil, translateWriteError(err, "payment")
		}
		return p, nil
	}

	if err := matchesPayment(existing, details); err != nil {
		slog.Warn("Rejecting outcome for mismatched payment", "referenceID", referenceID,
			"ownerID", existing.UserID, "userID", details.UserID, "error", err)
		return nil, err
	}

	if existing.Status == outcome || !existing.Status.CanTransitionTo(outcome) {
		if existing.Status != outcome {
			slog.Warn("Ignoring payment status change", "referenceID", referenceID, "from", existing.Status, "to", outcome)
		}
		return existing, nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`, outcome, now, existing.ID)
	if err != nil {
		slog.Error("Failed to update payment status", "paymentID", existing.ID, "outcome", outcome, "error", err)
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	existing.Status = outcome
	existing.UpdatedAt = now
	return existing, nil
}

// matchesPayment rejects details naming a different member or plan than the
// stored payment. Empty fields are not compared.
func matchesPayment(p *models.Payment, details models.PaymentInput) error {
	if details.UserID != "" && details.UserID != p.UserID {
		return apperrors.Validation("transaction belongs to a different member")
	}
	if details.SubscriptionID != "" && p.SubscriptionID != "" && details.SubscriptionID != p.SubscriptionID {
		return apperrors.Validation("transaction was made for a different plan")
	}
	return nil
}

// MarkOutcome records the gateway result for a payment.
func MarkOutcome(ctx context.Context, referenceID string, outcome models.PaymentStatus, details models.PaymentInput) (*models.Payment, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	var result *models.Payment
	err := withTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = markOutcome(ctx, tx, referenceID, outcome, details)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListPayments returns one page of payments plus the total matching the filter.
func ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	if DB == nil {
		return nil, 0, errNotInitialized
	}

	var where []string
	var args []any
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, `(LOWER(subscription_name) LIKE ? OR LOWER(reference_id) LIKE ?)`)
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	if filter.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, filter.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+clause, args...).Scan(&total); err != nil {
		slog.Error("Failed to count payments", "error", err)
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	column, ok := paymentSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPaymentLimit
	}
	if limit > maxPaymentLimit {
		limit = maxPaymentLimit
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := `SELECT ` + paymentColumns + ` FROM payments` + clause +
		fmt.Sprintf(` ORDER BY %s %s LIMIT ? OFFSET ?`, column, order)
	rows, err := DB.QueryContext(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		slog.Error("Failed to list payments", "error", err)
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments, err := collectPayments(rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// ListPaymentsForUser returns the user's payments, newest first.
func ListPaymentsForUser(ctx context.Context, userID string) ([]models.Payment, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("Failed to list user payments", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to list user payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]models.Payment, error) {
	payments := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

// BuildPagination derives page metadata for a listing.
func BuildPagination(total, page, limit int) models.Pagination {
	if limit <= 0 {
		limit = defaultPaymentLimit
	}
	if limit > maxPaymentLimit {
		limit = maxPaymentLimit
	}
	if page < 1 {
		page = 1
	}
	pages := (total + limit - 1) / limit
	return models.Pagination{
		CurrentPage:   page,
		TotalPages:    pages,
		TotalPayments: total,
		HasNextPage:   page < pages,
		HasPrevPage:   page > 1,
	}
}

func withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
