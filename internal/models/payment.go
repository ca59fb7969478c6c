// internal/models/payment.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the gateway outcome is already known.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// CanTransitionTo reports whether a payment in status s may move to next.
// A success is final; a failure may still be confirmed as success by the gateway.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next.IsTerminal()
	case PaymentStatusFailed:
		return next == PaymentStatusSuccess
	}
	return false
}

// Payment is one checkout attempt, keyed by the gateway reference id.
type Payment struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	SubscriptionID   string          `json:"subscriptionId"`
	SubscriptionName string          `json:"subscriptionName"`
	Amount           decimal.Decimal `json:"amount"`
	ReferenceID      string          `json:"refId"`
	Status           PaymentStatus   `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// PaymentInput carries the fields a payment row is created from.
type PaymentInput struct {
	UserID           string
	SubscriptionID   string
	SubscriptionName string
	Amount           decimal.Decimal
	ReferenceID      string
}

// PaymentFilter drives the admin payment listing.
type PaymentFilter struct {
	SortBy    string
	SortOrder string
	Search    string
	Status    PaymentStatus
	Limit     int
	Page      int
}

// Pagination is returned next to paged listings.
type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	TotalPayments int  `json:"totalPayments"`
	HasNextPage   bool `json:"hasNextPage"`
	HasPrevPage   bool `json:"hasPrevPage"`
}
