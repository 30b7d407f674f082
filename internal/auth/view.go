package auth

import (
	"time"

	"github.com/bizdir/bizdir/internal/db/models"
)

// UserView is the client facing shape of a user. It never carries the password hash.
type UserView struct {
	ID           uint64       `json:"id"`
	Username     string       `json:"username"`
	Role         models.Role  `json:"role"`
	Permissions  []string     `json:"permissions"`
	Active       bool         `json:"isActive"`
	LastLoginAt  *time.Time   `json:"lastLoginAt,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
}

// NewUserView builds the view of u with its resolved capabilities.
func NewUserView(u *models.User) UserView {
	grants := DecodePermissions(u.Permissions)
	if grants == nil {
		grants = []string{}
	}

	return UserView{
		ID:           u.ID,
		Username:     u.Username,
		Role:         u.Role,
		Permissions:  grants,
		Active:       u.Active,
		LastLoginAt:  u.LastLoginAt,
		Capabilities: ResolveUser(u),
	}
}
