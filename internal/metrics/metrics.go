// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymhub_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gymhub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PaymentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymhub_payments_recorded_total",
			Help: "Payment records written, by resulting status",
		},
		[]string{"status"},
	)

	SubscriptionsActivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymhub_subscriptions_activated_total",
			Help: "Subscriptions activated or extended after a verified checkout",
		},
	)

	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymhub_reconcile_runs_total",
			Help: "Reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "gymhub_reconcile_duration_seconds",
			Help: "Duration of reconciliation runs in seconds",
		},
	)

	SubscriptionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymhub_subscriptions_expired_total",
			Help: "Subscriptions moved from active to expired",
		},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymhub_emails_total",
			Help: "Notification emails by template and result",
		},
		[]string{"template", "result"},
	)
)
