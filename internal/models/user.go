package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/dailyexpenses/internal/apperr"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Username is the login name, unique and stored lower-cased.
	Username string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}

// NewUser creates a new user with a generated ID and timestamp.
func NewUser(username, passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Username:     NormalizeUsername(username),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Validate checks the user before it is written.
func (u *User) Validate() error {
	n := len(u.Username)
	if n < minUsernameLen || n > maxUsernameLen {
		return apperr.Invalid("username", "must be between %d and %d characters", minUsernameLen, maxUsernameLen)
	}
	if strings.ContainsAny(u.Username, " \t\r\n") {
		return apperr.Invalid("username", "must not contain whitespace")
	}
	if u.PasswordHash == "" {
		return apperr.Invalid("password", "is required")
	}
	return nil
}
