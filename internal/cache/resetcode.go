package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

// resetCodePrefix is the Redis key prefix for password reset codes.
const resetCodePrefix = "reset:code:"

func resetCodeKey(email string) string {
	return resetCodePrefix + model.NormalizeEmail(email)
}

// PutResetCode stores the code with a TTL matching its expiry, replacing
// any earlier code for the same email.
func (c *Cache) PutResetCode(ctx context.Context, code model.ResetCode) error {
	code.Email = model.NormalizeEmail(code.Email)

	ttl := code.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return c.DeleteResetCode(ctx, code.Email)
	}

	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal reset code: %w", err)
	}
	if err := c.client.Set(ctx, resetCodeKey(code.Email), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}
	return nil
}

// GetResetCode returns store.ErrResetCodeNotFound when no code is active.
func (c *Cache) GetResetCode(ctx context.Context, email string) (*model.ResetCode, error) {
	data, err := c.client.Get(ctx, resetCodeKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrResetCodeNotFound
		}
		return nil, fmt.Errorf("failed to get reset code: %w", err)
	}

	var code model.ResetCode
	if err := json.Unmarshal(data, &code); err != nil {
		// Corrupted entry is as good as none.
		return nil, store.ErrResetCodeNotFound
	}
	return &code, nil
}

// DeleteResetCode removes the code for email.
func (c *Cache) DeleteResetCode(ctx context.Context, email string) error {
	return c.client.Del(ctx, resetCodeKey(email)).Err()
}
