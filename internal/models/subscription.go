// internal/models/subscription.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusFailed  SubscriptionStatus = "failed"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// UserSubscription is a user's entitlement window for one plan purchase.
type UserSubscription struct {
	ID             string             `json:"id"`
	UserID         string             `json:"userId"`
	PlanID         string             `json:"planId"`
	PlanName       string             `json:"plan"`
	Amount         decimal.Decimal    `json:"amount"`
	ReferenceID    string             `json:"transactionId"`
	Status         SubscriptionStatus `json:"status"`
	StartDate      time.Time          `json:"startDate"`
	EndDate        time.Time          `json:"endDate"`
	LastNotifiedAt *time.Time         `json:"lastNotifiedAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// IsCurrent reports whether the entitlement is active at now.
// A row still marked active after its end date is not current.
func (s *UserSubscription) IsCurrent(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && !s.EndDate.Before(now)
}

// ActivationInput carries what ActivateOrExtend needs.
type ActivationInput struct {
	UserID       string
	PlanID       string
	PlanName     string
	Amount       decimal.Decimal
	ReferenceID  string
	DurationDays int
}

// SubscriptionOwner is a subscription joined with the owner's contact details,
// as needed by the reconciliation notices.
type SubscriptionOwner struct {
	Subscription UserSubscription
	Email        string
	Name         string
}
