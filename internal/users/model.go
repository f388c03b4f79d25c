package users

import (
	"time"

	"github.com/google/uuid"
)

// Roles. Admins are exempt from all quota checks.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	MinutesLimit float64   `json:"minutes_limit"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// QuotaExempt is resolved from Role when the row is loaded so the
	// admission path never looks at the role string itself.
	QuotaExempt bool `json:"-"`
}

func (u *User) resolveCapabilities() {
	u.QuotaExempt = u.Role == RoleAdmin
}
