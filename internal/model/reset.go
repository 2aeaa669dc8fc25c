package model

import "time"

// ResetCodeTTL is how long a password reset code stays valid.
const ResetCodeTTL = 10 * time.Minute

// ResetCode is the single active password reset code for an email.
type ResetCode struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the code is past its expiry at now.
func (r ResetCode) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
