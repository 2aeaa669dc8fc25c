package model

import (
	"errors"
	"testing"
	"time"
)

func TestConversation_WithMessageDoesNotAlias(t *testing.T) {
	t.Parallel()

	c := NewConversation()
	first := c.WithMessage(NewMessage(RoleUser, "hello"))
	second := first.WithMessage(NewMessage(RoleAssistant, "hi"))

	if len(c.Messages) != 0 {
		t.Errorf("original conversation changed: %d messages", len(c.Messages))
	}
	if len(first.Messages) != 1 {
		t.Errorf("first copy changed: %d messages", len(first.Messages))
	}
	if len(second.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(second.Messages))
	}
	if second.Messages[0].Content != "hello" || second.Messages[1].Content != "hi" {
		t.Errorf("unexpected order: %+v", second.Messages)
	}
}

func TestNewID_Ordered(t *testing.T) {
	t.Parallel()

	prev := NewID()
	for i := 0; i < 1000; i++ {
		next := NewID()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	if got := NormalizeEmail("  Jane.Doe@Example.COM "); got != "jane.doe@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestResetCode_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	code := ResetCode{Email: "a@b.c", Code: "123456", ExpiresAt: now.Add(ResetCodeTTL)}

	if code.Expired(now) {
		t.Error("fresh code should not be expired")
	}
	if !code.Expired(now.Add(ResetCodeTTL + time.Second)) {
		t.Error("code should be expired after the window")
	}
}

func TestDietaryProfile_Validate(t *testing.T) {
	t.Parallel()

	valid := DietaryProfile{
		Age:           "30",
		Gender:        "female",
		Height:        "170",
		Weight:        "65",
		Units:         UnitsMetric,
		ActivityLevel: "moderate",
		Goal:          "maintain_weight",
	}

	tests := []struct {
		name    string
		mutate  func(p *DietaryProfile)
		wantErr error
	}{
		{"valid", func(p *DietaryProfile) {}, nil},
		{"missing_age", func(p *DietaryProfile) { p.Age = " " }, ErrProfileIncomplete},
		{"bad_units", func(p *DietaryProfile) { p.Units = "stone" }, ErrInvalidUnits},
		{"bad_gender", func(p *DietaryProfile) { p.Gender = "" }, ErrInvalidGender},
		{"bad_activity", func(p *DietaryProfile) { p.ActivityLevel = "extreme" }, ErrInvalidActivityLevel},
		{"bad_goal", func(p *DietaryProfile) { p.Goal = "bulk" }, ErrInvalidGoal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
