// Package models contains database model definitions.
package models

import (
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// Role is the coarse account role.
type Role string

const (
	// RoleAdmin accounts hold every capability regardless of stored permissions.
	RoleAdmin Role = "admin"
	// RoleUser accounts hold exactly their stored permissions.
	RoleUser Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a user account in the directory.
// Permissions is the raw JSON array of capability tags as stored; it is interpreted
// only by the auth package.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Username is the unique login name.
	Username string `gorm:"uniqueIndex;size:100;not null"`
	// Password is the Argon2id hash of the secret.
	Password string `gorm:"size:255;not null"`
	// Role is either admin or user.
	Role Role `gorm:"type:varchar(20);not null;default:'user'"`
	// Permissions holds the encoded capability grants.
	Permissions string `gorm:"type:text"`
	// Active indicates whether the account may authenticate.
	Active bool `gorm:"not null;default:true"`
	// LastLoginAt is set on every successful login.
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName specifies the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// HashPassword hashes a plaintext password using Argon2id with the default parameters.
func HashPassword(password string) (string, error) {
	hashed, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hashed, nil
}

// VerifyPassword compares a plaintext password with the stored hash in constant time.
func (u *User) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Err(err).Uint64("user_id", u.ID).Msg("failed to verify password")
		return false
	}

	return match
}
