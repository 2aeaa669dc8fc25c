// Package remote combines Postgres and Redis into a single store.Backend.
package remote

import (
	"context"
	"fmt"

	"github.com/bytebuddy/bytebuddy/internal/cache"
	"github.com/bytebuddy/bytebuddy/internal/store"
	"github.com/bytebuddy/bytebuddy/internal/store/postgres"
)

var _ store.Backend = (*Backend)(nil)

// Backend keeps users and conversations in Postgres and the short-lived
// reset codes and session revocations in Redis.
type Backend struct {
	*postgres.DB
	*cache.Cache
}

// New composes an already connected database and cache.
func New(db *postgres.DB, c *cache.Cache) *Backend {
	return &Backend{DB: db, Cache: c}
}

// Ping checks both Postgres and Redis.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.DB.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := b.Cache.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases both connections.
func (b *Backend) Close() error {
	b.DB.Close()
	return b.Cache.Close()
}
