package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bytebuddy/bytebuddy/internal/metrics"
	"github.com/bytebuddy/bytebuddy/internal/model"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []Request
	resp     Response
	err      error
}

var _ Provider = (*fakeProvider)(nil)

func (f *fakeProvider) Complete(_ context.Context, req Request) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func (f *fakeProvider) calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func TestChat_MapsHistoryAndAppendsSources(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{resp: Response{
		Text:    "Drink water.",
		Sources: []Source{{Title: "CDC", URI: "https://cdc.gov"}},
	}}
	rec := metrics.NewInMemory()
	svc := NewService(p, rec, nil)

	history := []model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
		{Role: model.RoleUser, Content: "how much water?"},
	}
	got, err := svc.Chat(context.Background(), history)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	want := "Drink water.\n\n---\n*Information sourced from: [CDC](https://cdc.gov)*"
	if got != want {
		t.Errorf("Chat = %q, want %q", got, want)
	}

	reqs := p.calls()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(reqs))
	}
	req := reqs[0]
	if req.System != healthSystemInstruction || !req.Grounded {
		t.Errorf("unexpected request options: %+v", req)
	}
	if len(req.Turns) != 3 || req.Turns[1].Role != RoleAssistant || req.Turns[2].Content != "how much water?" {
		t.Errorf("unexpected turns: %+v", req.Turns)
	}

	stats := rec.Snapshot().Completions[metrics.TaskChat]
	if stats.Count != 1 || stats.Failed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestChat_ProviderFailure(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: errors.New("boom")}
	rec := metrics.NewInMemory()
	svc := NewService(p, rec, nil)

	if _, err := svc.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error")
	}
	if got := rec.Snapshot().Completions[metrics.TaskChat].Failed; got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
}

func TestChat_BlankTextIsEmptyCompletion(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeProvider{resp: Response{Text: "  "}}, nil, nil)

	_, err := svc.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{resp: Response{Text: " \"Hydration 'Basics'\"\n"}}
	svc := NewService(p, nil, nil)

	got, err := svc.Title(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "How much water should I drink?"},
	})
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if got != "Hydration Basics" {
		t.Errorf("Title = %q", got)
	}

	req := p.calls()[0]
	if req.Grounded || req.System != "" {
		t.Errorf("title request should be plain: %+v", req)
	}
	if !strings.Contains(req.Turns[0].Content, `Question: "How much water should I drink?"`) {
		t.Errorf("prompt missing question: %q", req.Turns[0].Content)
	}
}

func TestTitle_NoUserMessage(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	svc := NewService(p, nil, nil)

	got, err := svc.Title(context.Background(), nil)
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if got != model.DefaultConversationTitle {
		t.Errorf("Title = %q", got)
	}
	if len(p.calls()) != 0 {
		t.Error("provider should not be called")
	}
}

func TestDietaryPlan(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{resp: Response{Text: "### Day 1"}}
	svc := NewService(p, nil, nil)

	profile := model.DietaryProfile{
		Age:           "30",
		Gender:        "female",
		Height:        "65",
		Weight:        "140",
		Units:         model.UnitsImperial,
		ActivityLevel: "very_active",
		Goal:          "gain_muscle",
		UsualFoods:    "rice, eggs",
	}
	got, err := svc.DietaryPlan(context.Background(), profile)
	if err != nil {
		t.Fatalf("DietaryPlan: %v", err)
	}
	if got != "### Day 1" {
		t.Errorf("DietaryPlan = %q", got)
	}

	prompt := p.calls()[0].Turns[0].Content
	for _, want := range []string{
		"- **Height:** 65 inches",
		"- **Weight:** 140 lbs",
		"- **Primary Goal:** gain muscle",
		"- **Activity Level:** very active",
		"- **Dietary Restrictions or Allergies:** None",
		"[Disclaimer: This is an AI-generated dietary plan",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDietaryPlan_InvalidProfile(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	svc := NewService(p, nil, nil)

	_, err := svc.DietaryPlan(context.Background(), model.DietaryProfile{})
	if !errors.Is(err, model.ErrProfileIncomplete) {
		t.Fatalf("expected ErrProfileIncomplete, got %v", err)
	}
	if len(p.calls()) != 0 {
		t.Error("provider should not be called")
	}
}

func TestAnalyzeFood(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{resp: Response{Text: "### Nutritional Insights"}}
	svc := NewService(p, nil, nil)

	got, err := svc.AnalyzeFood(context.Background(), "  two eggs and toast ")
	if err != nil {
		t.Fatalf("AnalyzeFood: %v", err)
	}
	if got != "### Nutritional Insights" {
		t.Errorf("AnalyzeFood = %q", got)
	}

	req := p.calls()[0]
	if !req.Grounded {
		t.Error("food analysis should be grounded")
	}
	if !strings.Contains(req.Turns[0].Content, "\"two eggs and toast\"") {
		t.Errorf("prompt missing meal: %q", req.Turns[0].Content)
	}

	if _, err := svc.AnalyzeFood(context.Background(), "   "); !errors.Is(err, ErrEmptyMeal) {
		t.Errorf("expected ErrEmptyMeal, got %v", err)
	}
}

func TestFormatSources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sources []Source
		want    string
	}{
		{"none", nil, ""},
		{"only_empty_uri", []Source{{Title: "x"}}, ""},
		{
			name:    "title_falls_back_to_uri",
			sources: []Source{{URI: "https://a.example"}},
			want:    "\n\n---\n*Information sourced from: [https://a.example](https://a.example)*",
		},
		{
			name: "dedupes_in_order",
			sources: []Source{
				{Title: "B", URI: "https://b.example"},
				{Title: "A", URI: "https://a.example"},
				{Title: "B", URI: "https://b.example"},
				{Title: "skip"},
			},
			want: "\n\n---\n*Information sourced from: [B](https://b.example), [A](https://a.example)*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSources(tt.sources); got != tt.want {
				t.Errorf("FormatSources = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnconfigured(t *testing.T) {
	t.Parallel()

	_, err := Unconfigured{}.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
