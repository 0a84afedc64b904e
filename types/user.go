package types

import (
	"time"

	"github.com/google/uuid"
)

// User represents a player account.
// Email and username are each unique across all users.
type User struct {
	// ID is the opaque unique identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the user's email address, used to log in.
	Email string `json:"email" db:"email"`

	// Username is the public name shown on leaderboards.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was registered.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent profile update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
