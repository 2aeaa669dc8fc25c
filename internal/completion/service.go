package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bytebuddy/bytebuddy/internal/metrics"
	"github.com/bytebuddy/bytebuddy/internal/model"
)

// ErrEmptyMeal is returned by AnalyzeFood for a blank meal description.
var ErrEmptyMeal = errors.New("meal description is required")

// Service runs the assistant's completion tasks on top of a Provider.
type Service struct {
	provider Provider
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewService creates a completion service. Nil metrics and logger fall back
// to no-op implementations.
func NewService(provider Provider, m metrics.Recorder, logger *slog.Logger) *Service {
	if m == nil {
		m = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		metrics:  m,
		logger:   logger.With("component", "completion"),
	}
}

// Chat answers the latest turn of a conversation. Sources the provider used
// are appended to the reply as a citation block.
func (s *Service) Chat(ctx context.Context, history []model.Message) (string, error) {
	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		role := RoleUser
		if m.Role == model.RoleAssistant {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Content: m.Content})
	}

	resp, err := s.run(ctx, metrics.TaskChat, Request{
		System:   healthSystemInstruction,
		Turns:    turns,
		Grounded: true,
	})
	if err != nil {
		return "", err
	}
	return resp.Text + FormatSources(resp.Sources), nil
}

// Title derives a short conversation title from the first user message.
// Without a user message the default title is returned and no provider call
// is made.
func (s *Service) Title(ctx context.Context, history []model.Message) (string, error) {
	var question string
	for _, m := range history {
		if m.Role == model.RoleUser {
			question = m.Content
			break
		}
	}
	if question == "" {
		return model.DefaultConversationTitle, nil
	}

	resp, err := s.run(ctx, metrics.TaskTitle, Request{
		Turns: []Turn{{Role: RoleUser, Content: titlePrompt(question)}},
	})
	if err != nil {
		return "", err
	}
	return cleanTitle(resp.Text), nil
}

// DietaryPlan generates a seven-day plan for a validated profile.
func (s *Service) DietaryPlan(ctx context.Context, profile model.DietaryProfile) (string, error) {
	if err := profile.Validate(); err != nil {
		return "", err
	}

	resp, err := s.run(ctx, metrics.TaskDietaryPlan, Request{
		Turns: []Turn{{Role: RoleUser, Content: dietaryPlanPrompt(profile)}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// AnalyzeFood returns a nutritional breakdown of a meal with sources.
func (s *Service) AnalyzeFood(ctx context.Context, meal string) (string, error) {
	meal = strings.TrimSpace(meal)
	if meal == "" {
		return "", ErrEmptyMeal
	}

	resp, err := s.run(ctx, metrics.TaskFoodAnalysis, Request{
		Turns:    []Turn{{Role: RoleUser, Content: foodAnalysisPrompt(meal)}},
		Grounded: true,
	})
	if err != nil {
		return "", err
	}
	return resp.Text + FormatSources(resp.Sources), nil
}

func (s *Service) run(ctx context.Context, task string, req Request) (Response, error) {
	start := time.Now()
	resp, err := s.provider.Complete(ctx, req)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = ErrEmptyCompletion
	}
	s.metrics.ObserveCompletion(task, time.Since(start), err != nil)

	if err != nil {
		s.logger.Warn("completion failed", "task", task, "error", err)
		return Response{}, fmt.Errorf("%s completion: %w", task, err)
	}
	return resp, nil
}

func cleanTitle(text string) string {
	text = strings.ReplaceAll(text, `"`, "")
	text = strings.ReplaceAll(text, "'", "")
	return strings.TrimSpace(text)
}
