// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/bytebuddy/bytebuddy/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MessageResponse carries a user-facing status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// SignUpRequest is the body of POST /api/v1/auth/signup.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest is the body of POST /api/v1/auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetRequest is the body of POST /api/v1/auth/password-reset.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest is the body of
// POST /api/v1/auth/password-reset/confirm.
type PasswordResetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// SessionResponse is returned when a session starts.
type SessionResponse struct {
	Message   string          `json:"message"`
	Identity  *model.Identity `json:"identity"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// PasswordResetResponse may carry the code when demo codes are enabled.
type PasswordResetResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SessionStateResponse describes the current session for the client shell.
type SessionStateResponse struct {
	Authenticated bool            `json:"authenticated"`
	Screen        string          `json:"screen"`
	Identity      *model.Identity `json:"identity,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}
