// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Identity is the authenticated user as seen by the rest of the application.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Credential is an Identity plus its stored password hash.
// It never leaves the session and store layers.
type Credential struct {
	Identity
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an email address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
