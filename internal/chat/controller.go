// Package chat drives the message exchange of open conversations: it
// appends user input, asks the completion service for a reply and derives
// a title from the first question.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytebuddy/bytebuddy/internal/conversation"
	"github.com/bytebuddy/bytebuddy/internal/events"
	"github.com/bytebuddy/bytebuddy/internal/metrics"
	"github.com/bytebuddy/bytebuddy/internal/model"
)

// Controller states.
const (
	StateIdle             = "idle"
	StateAwaitingResponse = "awaiting_response"
)

// ApologyMessage replaces the assistant reply when the completion fails.
const ApologyMessage = "Sorry, something went wrong. Please try again."

// Submission errors.
var (
	ErrEmptyInput = errors.New("message must not be empty")
	ErrBusy       = errors.New("a reply is already being generated")
)

// Default timeouts.
const (
	DefaultCompletionTimeout = 60 * time.Second
	DefaultTitleTimeout      = 20 * time.Second
)

// Completer produces chat replies and titles.
type Completer interface {
	Chat(ctx context.Context, history []model.Message) (string, error)
	Title(ctx context.Context, history []model.Message) (string, error)
}

// Config holds Manager dependencies.
type Config struct {
	Completer         Completer
	Notifier          conversation.Notifier
	Metrics           metrics.Recorder
	Logger            *slog.Logger
	CompletionTimeout time.Duration
	TitleTimeout      time.Duration
}

// Outcome is the result of an accepted submission.
type Outcome struct {
	UserMessage  model.Message      `json:"user_message"`
	Reply        model.Message      `json:"reply"`
	Failed       bool               `json:"failed"`
	Conversation model.Conversation `json:"conversation"`
}

type controllerKey struct {
	identityID     string
	conversationID string
}

// Manager owns one Controller per identity and conversation and tracks
// background title work.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	controllers map[controllerKey]*Controller
	wg          sync.WaitGroup
}

// NewManager creates a manager, filling unset options with defaults.
func NewManager(cfg Config) *Manager {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = DefaultCompletionTimeout
	}
	if cfg.TitleTimeout <= 0 {
		cfg.TitleTimeout = DefaultTitleTimeout
	}
	return &Manager{
		cfg:         cfg,
		logger:      cfg.Logger.With(slog.String("component", "chat")),
		controllers: make(map[controllerKey]*Controller),
	}
}

// Controller returns the controller for a conversation in s. A store that
// replaced an earlier one for the same identity gets fresh controllers.
func (m *Manager) Controller(s *conversation.Store, conversationID string) *Controller {
	key := controllerKey{identityID: s.IdentityID(), conversationID: conversationID}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.controllers[key]; ok && c.store == s {
		return c
	}
	c := &Controller{manager: m, store: s, conversationID: conversationID}
	m.controllers[key] = c
	return c
}

// Forget discards the controller of a deleted conversation.
func (m *Manager) Forget(identityID, conversationID string) {
	m.mu.Lock()
	delete(m.controllers, controllerKey{identityID: identityID, conversationID: conversationID})
	m.mu.Unlock()
}

// Drop discards every controller of an identity.
func (m *Manager) Drop(identityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.controllers {
		if key.identityID == identityID {
			delete(m.controllers, key)
		}
	}
}

// Wait blocks until background title derivations have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Controller is the exchange state machine of one conversation.
type Controller struct {
	manager        *Manager
	store          *conversation.Store
	conversationID string

	busy   atomic.Bool
	titled atomic.Bool
}

// State returns StateIdle or StateAwaitingResponse.
func (c *Controller) State() string {
	if c.busy.Load() {
		return StateAwaitingResponse
	}
	return StateIdle
}

// Submit appends text as a user message and waits for the assistant reply.
// A failed completion is answered with ApologyMessage; the error return is
// reserved for rejected submissions and a conversation that disappeared.
// The exchange is not cancelled when ctx is.
func (c *Controller) Submit(ctx context.Context, text string) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Outcome{}, ErrEmptyInput
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrBusy
	}
	defer func() {
		c.busy.Store(false)
		c.publishState(StateIdle)
	}()

	m := c.manager
	ctx = context.WithoutCancel(ctx)

	user := model.NewMessage(model.RoleUser, text)
	conv, err := c.store.AddMessage(ctx, c.conversationID, user)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to append user message: %w", err)
	}
	c.publishState(StateAwaitingResponse)

	if needsTitle(conv) && c.titled.CompareAndSwap(false, true) {
		history := conv.Messages
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			c.deriveTitle(history)
		}()
	}

	out := Outcome{UserMessage: user}

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CompletionTimeout)
	reply, err := m.cfg.Completer.Chat(cctx, conv.Messages)
	cancel()
	if err != nil {
		m.logger.Warn("chat completion failed",
			slog.String("conversation_id", c.conversationID),
			slog.String("error", err.Error()),
		)
		reply = ApologyMessage
		out.Failed = true
	}

	out.Reply = model.NewMessage(model.RoleAssistant, reply)
	out.Conversation, err = c.store.AddMessage(ctx, c.conversationID, out.Reply)
	if err != nil {
		return out, fmt.Errorf("failed to append reply: %w", err)
	}
	return out, nil
}

// needsTitle reports whether conv holds only its first message and still
// has the default title.
func needsTitle(conv model.Conversation) bool {
	return len(conv.Messages) == 1 && conv.HasDefaultTitle()
}

func (c *Controller) deriveTitle(history []model.Message) {
	m := c.manager
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TitleTimeout)
	defer cancel()

	logger := m.logger.With(slog.String("conversation_id", c.conversationID))

	title, err := m.cfg.Completer.Title(ctx, history)
	if err != nil {
		logger.Warn("title derivation failed", slog.String("error", err.Error()))
		return
	}
	if strings.TrimSpace(title) == "" {
		return
	}

	changed, err := c.store.UpdateTitleIfDefault(ctx, c.conversationID, title)
	if err != nil {
		logger.Warn("failed to apply derived title", slog.String("error", err.Error()))
		return
	}
	if changed {
		m.cfg.Metrics.IncTitleDerived()
	}
}

func (c *Controller) publishState(state string) {
	n := c.manager.cfg.Notifier
	if n == nil {
		return
	}
	n.Publish(events.Event{
		Kind:           events.KindStateChanged,
		IdentityID:     c.store.IdentityID(),
		ConversationID: c.conversationID,
		State:          state,
	})
}
