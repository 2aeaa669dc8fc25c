package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	// rateLimitIPPrefix is the Redis key prefix for per-IP auth limits.
	rateLimitIPPrefix = "ratelimit:auth:"
	// rateLimitIPTTL is the TTL for IP rate limit keys.
	rateLimitIPTTL = 60 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes in a single atomic step.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- bucket capacity
	local now = tonumber(ARGV[3])       -- seconds
	local ttl = tonumber(ARGV[4])       -- seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckIPRateLimit checks and updates the bucket for an IP address.
// IPs are hashed before they are used as keys.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	key := rateLimitIPPrefix + hashIP(ip)
	perSecond := float64(ratePerSecond)

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		perSecond, burst, c.now().Unix(), int(rateLimitIPTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		// Fail open on Redis errors.
		return allowAll(burst), nil
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    c.now().Add(time.Duration(float64(time.Second) / perSecond)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}, nil
}

func allowAll(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// hashIP returns a truncated SHA256 of an IP address (16 hex chars).
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}

// MemoryLimiter is the in-process limiter used when no Redis is configured.
// Each IP gets its own rate.Limiter with the same rate and burst the Lua
// script applies.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	now      func() time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates an empty limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{limiters: make(map[string]*ipLimiter), now: time.Now}
}

// CheckIPRateLimit takes one token from the IP's limiter.
func (m *MemoryLimiter) CheckIPRateLimit(_ context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return allowAll(burst), nil
	}
	limit := rate.Limit(ratePerSecond)
	now := m.now()
	key := hashIP(ip)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)

	l, ok := m.limiters[key]
	if !ok || l.limiter.Limit() != limit || l.limiter.Burst() != burst {
		l = &ipLimiter{limiter: rate.NewLimiter(limit, burst)}
		m.limiters[key] = l
	}
	l.lastSeen = now

	res := &RateLimitResult{
		Allowed: l.limiter.AllowN(now, 1),
		ResetAt: now.Add(time.Duration(float64(time.Second) / float64(limit))),
	}
	tokens := l.limiter.TokensAt(now)
	if !res.Allowed {
		res.RetryAfter = time.Duration(math.Ceil((1-tokens)/float64(limit))) * time.Second
	}
	res.Remaining = int64(math.Max(0, math.Floor(tokens)))
	return res, nil
}

// sweep drops limiters idle longer than the Redis key TTL.
func (m *MemoryLimiter) sweep(now time.Time) {
	for k, l := range m.limiters {
		if now.Sub(l.lastSeen) > rateLimitIPTTL {
			delete(m.limiters, k)
		}
	}
}
