// internal/models/role.go
package models

import "time"

type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Role names stored in the roles table.
const (
	RoleUser  string = "user"
	RoleAdmin string = "admin"
)

// ValidRole reports whether name is one of the known roles.
func ValidRole(name string) bool {
	return name == RoleUser || name == RoleAdmin
}
