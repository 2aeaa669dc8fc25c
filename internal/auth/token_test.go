package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("test-signing-key")

func TestTokens_IssueAndParse(t *testing.T) {
	t.Parallel()

	tokens := NewTokens(testKey, time.Hour)

	raw, issued, err := tokens.Issue("identity-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := tokens.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.IdentityID != "identity-1" {
		t.Errorf("IdentityID = %q", claims.IdentityID)
	}
	if claims.TokenID != issued.TokenID || claims.TokenID == "" {
		t.Errorf("TokenID = %q, want %q", claims.TokenID, issued.TokenID)
	}
	if !claims.ExpiresAt.Equal(issued.ExpiresAt.Truncate(time.Second)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, issued.ExpiresAt)
	}
}

func TestTokens_UniqueIDs(t *testing.T) {
	t.Parallel()

	tokens := NewTokens(testKey, time.Hour)
	_, a, _ := tokens.Issue("identity-1")
	_, b, _ := tokens.Issue("identity-1")
	if a.TokenID == b.TokenID {
		t.Error("each issued token needs its own id")
	}
}

func TestTokens_Expired(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-2 * time.Hour)
	issuer := NewTokens(testKey, time.Hour).WithClock(func() time.Time { return past })
	raw, _, err := issuer.Issue("identity-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = NewTokens(testKey, time.Hour).Parse(raw)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	claims, err := NewTokens(testKey, time.Hour).ParseUnverifiedExpiry(raw)
	if err != nil {
		t.Fatalf("ParseUnverifiedExpiry failed: %v", err)
	}
	if claims.IdentityID != "identity-1" {
		t.Errorf("IdentityID = %q", claims.IdentityID)
	}
}

func TestTokens_Rejects(t *testing.T) {
	t.Parallel()

	tokens := NewTokens(testKey, time.Hour)
	raw, _, _ := tokens.Issue("identity-1")

	other, _, _ := NewTokens([]byte("other-key"), time.Hour).Issue("identity-1")

	hs384 := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.RegisteredClaims{
		ID:        "id",
		Subject:   "identity-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	wrongAlg, _ := hs384.SignedString(testKey)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "id",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	missingSub, _ := noSubject.SignedString(testKey)

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-token"},
		{"tampered", raw + "x"},
		{"other key", other},
		{"wrong algorithm", wrongAlg},
		{"missing subject", missingSub},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Parse(tt.raw); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
