package auth

import (
	"context"
	"time"

	"github.com/bytebuddy/bytebuddy/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const sessionContextKey contextKey = "session"

// Session is an authenticated request's identity and token metadata.
type Session struct {
	Identity  model.Identity
	TokenID   string
	ExpiresAt time.Time
}

// ContextWithSession adds the session to ctx.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext returns the session stored in ctx, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return s
}

// IdentityIDFromContext returns the authenticated identity id, or "".
func IdentityIDFromContext(ctx context.Context) string {
	s := SessionFromContext(ctx)
	if s == nil {
		return ""
	}
	return s.Identity.ID
}
