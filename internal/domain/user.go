package domain

import "time"

// Role separates regular submitters from managers.
type Role string

const (
	RoleUser    Role = "USER"
	RoleManager Role = "MANAGER"
)

// ValidRole reports whether the value is a known role.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleManager
}

// User is the domain model for people who submit or manage work orders.
// Accounts are provisioned through the auth endpoints; the order engine
// treats them as read-only.
type User struct {
	ID           string
	Name         *string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
