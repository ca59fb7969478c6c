// internal/models/plan.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, the way the checkout page sends them.
	decimal.MarshalJSONWithoutQuotes = true
}

// Plan is a purchasable membership tier.
type Plan struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	DurationDays   int             `json:"durationDays"`
	IncludesCardio bool            `json:"includesCardio"`
	Features       []string        `json:"features"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	// Current is set on listings for the plan the signed-in member holds.
	Current bool `json:"current,omitempty"`
}

// PlanRequest is the admin payload for creating or replacing a plan.
type PlanRequest struct {
	Name           string           `json:"name" validate:"required,max=120"`
	Price          *decimal.Decimal `json:"price" validate:"required,gte=0"`
	DurationDays   int              `json:"durationDays" validate:"gte=0,lte=3660"`
	IncludesCardio bool             `json:"includesCardio"`
	Features       []string         `json:"features" validate:"required,min=1,dive,required"`
}

// ToPlan copies the request into a Plan, leaving ID and timestamps empty.
func (r PlanRequest) ToPlan() Plan {
	p := Plan{
		Name:           r.Name,
		DurationDays:   r.DurationDays,
		IncludesCardio: r.IncludesCardio,
		Features:       append([]string(nil), r.Features...),
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	return p
}
