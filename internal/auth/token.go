package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
)

// tokenLeeway tolerates small clock skew between issuer and verifier.
const tokenLeeway = 30 * time.Second

// SessionClaims is the decoded content of a session token.
type SessionClaims struct {
	TokenID    string
	IdentityID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Tokens issues and verifies HS256 session tokens.
// The subject is the identity marker that a session restores from.
type Tokens struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewTokens returns a Tokens signing with key, valid for ttl.
func NewTokens(key []byte, ttl time.Duration) *Tokens {
	return &Tokens{signKey: key, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	t.now = now
	return t
}

// Issue signs a new token for identityID.
func (t *Tokens) Issue(identityID string) (string, SessionClaims, error) {
	now := t.now().UTC()
	claims := SessionClaims{
		TokenID:    uuid.NewString(),
		IdentityID: identityID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(t.ttl),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        claims.TokenID,
		Subject:   identityID,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})

	signed, err := tok.SignedString(t.signKey)
	if err != nil {
		return "", SessionClaims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature and expiry of raw and returns its claims.
func (t *Tokens) Parse(raw string) (*SessionClaims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &rc, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.signKey, nil
	},
		jwt.WithTimeFunc(t.now),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if rc.Subject == "" || rc.ID == "" {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{
		TokenID:    rc.ID,
		IdentityID: rc.Subject,
		ExpiresAt:  rc.ExpiresAt.Time,
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	return claims, nil
}

// ParseUnverifiedExpiry extracts the token id and expiry of raw without
// checking its validity window. Signature is still verified.
// Sign-out uses it so that an expired token can still be revoked idempotently.
func (t *Tokens) ParseUnverifiedExpiry(raw string) (*SessionClaims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &rc, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.signKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || rc.ID == "" {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{TokenID: rc.ID, IdentityID: rc.Subject}
	if rc.ExpiresAt != nil {
		claims.ExpiresAt = rc.ExpiresAt.Time
	}
	return claims, nil
}
