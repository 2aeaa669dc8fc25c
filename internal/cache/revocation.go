package cache

import (
	"context"
	"fmt"
	"time"
)

// revokedSessionPrefix is the Redis key prefix for signed-out session tokens.
const revokedSessionPrefix = "session:revoked:"

// RevokeSession marks tokenID revoked. The key expires with the token, so
// the revocation set never outgrows the live sessions.
func (c *Cache) RevokeSession(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedSessionPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether tokenID has been signed out.
func (c *Cache) IsSessionRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedSessionPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return n > 0, nil
}
