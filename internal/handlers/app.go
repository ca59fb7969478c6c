// internal/handlers/app.go
package handlers

import (
	"context"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/shopspring/decimal"

	"gymhub.np/internal/catalog"
	"gymhub.np/internal/config"
	"gymhub.np/internal/membership"
	"gymhub.np/internal/models"
	"gymhub.np/internal/payment_gateway/esewa"
)

// StatusChecker confirms a transaction with the payment gateway.
type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionUUID string, totalAmount decimal.Decimal) (*esewa.StatusResponse, error)
}

// MemberNotifier sends the emails triggered directly by API calls.
type MemberNotifier interface {
	SendActivated(ctx context.Context, to, name string, sub models.UserSubscription) error
	SendPasswordReset(ctx context.Context, to, name, rawToken string) error
}

// ReconcileRunner runs one reconciliation pass.
type ReconcileRunner interface {
	Run(ctx context.Context) (membership.Result, error)
}

type AppHandlers struct {
	Config         *config.Config
	SessionManager *scs.SessionManager
	Catalog        *catalog.Service
	Reconciler     ReconcileRunner
	Notifier       MemberNotifier
	// Gateway is nil when checkouts are trusted without a status lookup.
	Gateway StatusChecker
	Now     func() time.Time
}

func NewAppHandlers(cfg *config.Config, sm *scs.SessionManager, cat *catalog.Service, rec ReconcileRunner, notifier MemberNotifier, gateway StatusChecker) *AppHandlers {
	return &AppHandlers{
		Config:         cfg,
		SessionManager: sm,
		Catalog:        cat,
		Reconciler:     rec,
		Notifier:       notifier,
		Gateway:        gateway,
		Now:            time.Now,
	}
}

func (app *AppHandlers) now() time.Time {
	if app.Now == nil {
		return time.Now()
	}
	return app.Now()
}

// sendTimeout bounds a single notification sent from a request.
func (app *AppHandlers) sendTimeout() time.Duration {
	if app.Config == nil || app.Config.EmailSendTimeout() <= 0 {
		return 10 * time.Second
	}
	return app.Config.EmailSendTimeout()
}
