// Package user defines platform account records and their earnings ledger.
package user

import "time"

// Roles assignable to accounts.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a platform account. TotalEarnings accumulates everything ever
// earned; PendingEarnings is the payable balance; PaidEarnings records what
// has been settled out.
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	TotalEarnings   float64   `json:"total_earnings"`
	PendingEarnings float64   `json:"pending_earnings"`
	PaidEarnings    float64   `json:"paid_earnings"`
	PostsCount      int64     `json:"posts_count"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
