package domain

import "time"

// Roles recognised by the dashboard authorization layer.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User represents a dashboard account.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Role         string
	CreatedAt    time.Time
}

// IsAdmin reports whether the user may access the metrics dashboard.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
