// internal/membership/reconcile.go
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/metrics"
	"gymhub.np/internal/models"
)

// renoticeAfter is the minimum gap between two "expiring soon" emails for one subscription.
const renoticeAfter = 24 * time.Hour

type SubscriptionStore interface {
	ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration, notifiedBefore time.Time) ([]models.SubscriptionOwner, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.SubscriptionOwner, error)
	MarkExpired(ctx context.Context, subscriptionID string, now time.Time) (bool, error)
	MarkNotified(ctx context.Context, subscriptionID string, at time.Time) error
}

type Notifier interface {
	SendExpiringSoon(ctx context.Context, owner models.SubscriptionOwner) error
	SendExpired(ctx context.Context, owner models.SubscriptionOwner) error
}

// Locker guards against overlapping runs across triggers and instances.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Result summarises one run.
type Result struct {
	EmailsSent           int  `json:"emailsSent"`
	SubscriptionsUpdated int  `json:"subscriptionsUpdated"`
	Expiring             int  `json:"expiring"`
	Expired              int  `json:"expired"`
	Skipped              bool `json:"skipped,omitempty"`
}

type Options struct {
	// NoticeWindow returns how far ahead to warn about ending subscriptions.
	NoticeWindow func(ctx context.Context) time.Duration
	// SendTimeout bounds every individual email.
	SendTimeout time.Duration
	Clock       func() time.Time
}

type Reconciler struct {
	store    SubscriptionStore
	notifier Notifier
	locker   Locker
	opts     Options
}

func NewReconciler(store SubscriptionStore, notifier Notifier, locker Locker, opts Options) *Reconciler {
	if opts.NoticeWindow == nil {
		opts.NoticeWindow = func(context.Context) time.Duration { return 3 * 24 * time.Hour }
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Reconciler{store: store, notifier: notifier, locker: locker, opts: opts}
}

// Run sends renewal reminders and expires lapsed subscriptions. Notification
// failures are logged and skipped; store failures abort the run.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	var res Result

	release, ok, err := r.locker.TryLock(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return res, apperrors.Upstream("could not acquire reconciliation lock", err)
	}
	if !ok {
		slog.Info("Reconciliation already running, skipping")
		metrics.ReconcileRuns.WithLabelValues("skipped").Inc()
		res.Skipped = true
		return res, nil
	}
	defer release()

	started := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(started).Seconds()) }()

	now := r.opts.Clock()
	if err := r.notifyExpiring(ctx, now, &res); err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return res, err
	}
	if err := r.expireLapsed(ctx, now, &res); err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return res, err
	}

	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	slog.Info("Reconciliation finished",
		"expiring", res.Expiring,
		"expired", res.Expired,
		"subscriptionsUpdated", res.SubscriptionsUpdated,
		"emailsSent", res.EmailsSent,
		"duration", time.Since(started).String(),
	)
	return res, nil
}

func (r *Reconciler) notifyExpiring(ctx context.Context, now time.Time, res *Result) error {
	window := r.opts.NoticeWindow(ctx)
	expiring, err := r.store.ListExpiringSoon(ctx, now, window, now.Add(-renoticeAfter))
	if err != nil {
		return apperrors.Upstream("could not list expiring subscriptions", err)
	}
	res.Expiring = len(expiring)

	for _, owner := range expiring {
		if err := r.send(ctx, "expiring_soon", owner, r.notifier.SendExpiringSoon); err != nil {
			continue
		}
		res.EmailsSent++
		if err := r.store.MarkNotified(ctx, owner.Subscription.ID, now); err != nil {
			slog.Error("Failed to record renewal reminder", "subscriptionID", owner.Subscription.ID, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) expireLapsed(ctx context.Context, now time.Time, res *Result) error {
	lapsed, err := r.store.ListExpired(ctx, now)
	if err != nil {
		return apperrors.Upstream("could not list expired subscriptions", err)
	}
	res.Expired = len(lapsed)

	for _, owner := range lapsed {
		changed, err := r.store.MarkExpired(ctx, owner.Subscription.ID, now)
		if err != nil {
			return apperrors.Upstream(fmt.Sprintf("could not expire subscription %s", owner.Subscription.ID), err)
		}
		if !changed {
			continue
		}
		res.SubscriptionsUpdated++
		metrics.SubscriptionsExpired.Inc()

		if err := r.send(ctx, "expired", owner, r.notifier.SendExpired); err == nil {
			res.EmailsSent++
		}
	}
	return nil
}

func (r *Reconciler) send(ctx context.Context, template string, owner models.SubscriptionOwner,
	fn func(context.Context, models.SubscriptionOwner) error) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.opts.SendTimeout)
	defer cancel()

	if err := fn(sendCtx, owner); err != nil {
		metrics.EmailsSent.WithLabelValues(template, "error").Inc()
		slog.Error("Failed to send subscription email",
			"template", template,
			"subscriptionID", owner.Subscription.ID,
			"email", owner.Email,
			"error", err,
		)
		return err
	}
	metrics.EmailsSent.WithLabelValues(template, "ok").Inc()
	return nil
}
