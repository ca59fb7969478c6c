// internal/models/content.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Trainer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

type TrainerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	ImageURL string `json:"imageUrl" validate:"required,url"`
}

type Review struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReviewRequest struct {
	Name    string `json:"name" validate:"required,max=80"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=80"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,max=5000"`
}

// AppSetting is a runtime-tunable key/value pair managed from the admin API.
type AppSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AdminStats feeds the admin dashboard counters.
type AdminStats struct {
	TotalUsers          int             `json:"totalUsers"`
	TotalSubscriptions  int             `json:"totalSubscriptions"`
	ActiveSubscriptions int             `json:"activeSubscriptions"`
	TotalPayments       int             `json:"totalPayments"`
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
	NewUsersLast30Days  int             `json:"newUsersLast30Days"`
}
