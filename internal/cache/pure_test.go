package cache

import (
	"context"
	"testing"
	"time"
)

func TestHashIP_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	hash1 := hashIP(ip)
	hash2 := hashIP(ip)

	if hash1 != hash2 {
		t.Error("Same IP should produce same hash")
	}
}

func TestHashIP_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv4 localhost", "127.0.0.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash := hashIP(tt.ip)
			// hashIP uses first 8 bytes of SHA256, encoded as 16 hex chars
			if len(hash) != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, len(hash))
			}
		})
	}
}

func TestHashIP_Different(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip1  string
		ip2  string
	}{
		{"different IPv4", "192.168.1.1", "192.168.1.2"},
		{"different last octet", "10.0.0.1", "10.0.0.2"},
		{"IPv4 vs IPv6", "127.0.0.1", "::1"},
		{"public vs private", "8.8.8.8", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash1 := hashIP(tt.ip1)
			hash2 := hashIP(tt.ip2)

			if hash1 == hash2 {
				t.Errorf("Different IPs should produce different hashes: %q and %q both produced %s", tt.ip1, tt.ip2, hash1)
			}
		})
	}
}

func TestMemoryLimiter_BurstThenRefill(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryLimiter()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := m.CheckIPRateLimit(ctx, "10.0.0.1", 1, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}

	res, _ := m.CheckIPRateLimit(ctx, "10.0.0.1", 1, 3)
	if res.Allowed {
		t.Fatal("request beyond burst should be denied")
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", res.RetryAfter)
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}

	other, _ := m.CheckIPRateLimit(ctx, "10.0.0.2", 1, 3)
	if !other.Allowed {
		t.Error("buckets must be per IP")
	}

	now = now.Add(time.Second)
	res, _ = m.CheckIPRateLimit(ctx, "10.0.0.1", 1, 3)
	if !res.Allowed {
		t.Error("one token should have been refilled after a second")
	}
}

func TestMemoryLimiter_SweepsIdleBuckets(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryLimiter()
	m.now = func() time.Time { return now }

	_, _ = m.CheckIPRateLimit(context.Background(), "10.0.0.1", 1, 1)
	now = now.Add(2 * rateLimitIPTTL)
	_, _ = m.CheckIPRateLimit(context.Background(), "10.0.0.2", 1, 1)

	if len(m.limiters) != 1 {
		t.Errorf("expected idle limiter to be swept, have %d limiters", len(m.limiters))
	}
}

func TestResetCodeKey_Normalizes(t *testing.T) {
	t.Parallel()

	if got := resetCodeKey(" Jane@Example.com"); got != "reset:code:jane@example.com" {
		t.Errorf("resetCodeKey = %q", got)
	}
}
