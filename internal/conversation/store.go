// Package conversation keeps each identity's conversation list in memory,
// applies changes optimistically and persists them behind the scenes.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytebuddy/bytebuddy/internal/events"
	"github.com/bytebuddy/bytebuddy/internal/metrics"
	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

// Store errors.
var (
	ErrConversationNotFound = store.ErrConversationNotFound
	ErrEmptyTitle           = errors.New("title must not be empty")
	ErrInvalidMessage       = errors.New("message needs a known role and content")
)

// DefaultBackoff is the wait before each retry of a failed durable write.
var DefaultBackoff = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// Notifier receives every applied change.
type Notifier interface {
	Publish(e events.Event)
}

// Options configure a Store.
type Options struct {
	Notifier Notifier
	Metrics  metrics.Recorder
	Logger   *slog.Logger
	// Backoff overrides DefaultBackoff. An empty non-nil slice disables retries.
	Backoff []time.Duration
}

// Snapshot is an immutable view of the conversation list. Callers must not
// modify the slice or the conversations in it.
type Snapshot struct {
	Conversations []model.Conversation
	Loaded        bool
}

// Find returns the conversation with id.
func (s Snapshot) Find(id string) (model.Conversation, bool) {
	if i := s.index(id); i >= 0 {
		return s.Conversations[i], true
	}
	return model.Conversation{}, false
}

func (s Snapshot) index(id string) int {
	for i := range s.Conversations {
		if s.Conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// Store is one identity's conversation list.
type Store struct {
	identityID string
	backend    store.ConversationStore
	notifier   Notifier
	metrics    metrics.Recorder
	logger     *slog.Logger
	backoff    []time.Duration
	sleep      func(time.Duration)

	// mu orders mutations and reloads. Durable writes run outside it, one
	// at a time in the order their mutations were applied.
	mu    sync.Mutex
	tail  chan struct{} // closed once the last queued write has finished
	snap  atomic.Pointer[Snapshot]
	stale atomic.Bool
}

// NewStore creates an unloaded store for identityID.
func NewStore(identityID string, backend store.ConversationStore, opts Options) *Store {
	s := &Store{
		identityID: identityID,
		backend:    backend,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		backoff:    opts.Backoff,
		sleep:      time.Sleep,
		tail:       make(chan struct{}),
	}
	close(s.tail)
	if s.metrics == nil {
		s.metrics = metrics.NewNoop()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "conversations"), slog.String("identity_id", identityID))
	if s.backoff == nil {
		s.backoff = DefaultBackoff
	}
	s.snap.Store(&Snapshot{Conversations: []model.Conversation{}})
	return s
}

// IdentityID returns the owner of this store.
func (s *Store) IdentityID() string {
	return s.identityID
}

// Snapshot returns the current list.
func (s *Store) Snapshot() Snapshot {
	return *s.snap.Load()
}

// Get returns one conversation from the current list.
func (s *Store) Get(id string) (model.Conversation, bool) {
	return s.Snapshot().Find(id)
}

// Stale reports whether a durable write failed since the last load.
func (s *Store) Stale() bool {
	return s.stale.Load()
}

// Load replaces the list with the backend's. On failure the list is left
// empty but marked loaded, and the store stays stale so the next
// EnsureLoaded retries.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// EnsureLoaded loads the list if it was never loaded or has gone stale.
// A loaded, fresh list is returned as is, even while writes are in flight.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	if s.fresh() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fresh() {
		return nil
	}
	return s.loadLocked(ctx)
}

func (s *Store) fresh() bool {
	return s.snap.Load().Loaded && !s.stale.Load()
}

// loadLocked waits for queued writes so the backend reflects every applied
// mutation, then reads the list. Callers hold s.mu.
func (s *Store) loadLocked(ctx context.Context) error {
	<-s.tail
	s.snap.Store(&Snapshot{Conversations: []model.Conversation{}})

	list, err := s.backend.ListConversations(ctx, s.identityID)
	if err != nil {
		s.stale.Store(true)
		s.snap.Store(&Snapshot{Conversations: []model.Conversation{}, Loaded: true})
		s.logger.Error("failed to load conversations", slog.String("error", err.Error()))
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	if list == nil {
		list = []model.Conversation{}
	}

	s.stale.Store(false)
	s.snap.Store(&Snapshot{Conversations: list, Loaded: true})
	s.publish(events.Event{Kind: events.KindConversationsLoaded})
	return nil
}

// Create adds a new empty conversation at the head of the list. The insert
// is durable before Create returns; if it fails the conversation is removed
// again.
func (s *Store) Create(ctx context.Context) (model.Conversation, error) {
	s.mu.Lock()
	c := model.NewConversation()
	before := s.snap.Load()

	next := make([]model.Conversation, 0, len(before.Conversations)+1)
	next = append(next, c)
	next = append(next, before.Conversations...)
	s.snap.Store(&Snapshot{Conversations: next, Loaded: before.Loaded})
	w := s.enqueue()
	s.mu.Unlock()

	err := s.persist(ctx, w, "create_conversation", false, func(ctx context.Context) error {
		return s.backend.CreateConversation(ctx, s.identityID, c)
	})
	if err != nil {
		s.mu.Lock()
		s.snap.Store(s.without(c.ID))
		s.mu.Unlock()
		return model.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.metrics.IncConversationCreated()
	s.publish(events.Event{Kind: events.KindConversationCreated, ConversationID: c.ID, Conversation: &c})
	return c, nil
}

// AddMessage appends m to the conversation. The list reflects the message
// immediately; persistence failures are logged and mark the store stale.
func (s *Store) AddMessage(ctx context.Context, conversationID string, m model.Message) (model.Conversation, error) {
	if !m.Role.IsValid() || m.Content == "" {
		return model.Conversation{}, ErrInvalidMessage
	}

	s.mu.Lock()
	updated, err := s.replace(conversationID, func(c model.Conversation) (model.Conversation, bool) {
		return c.WithMessage(m), true
	})
	if err != nil {
		s.mu.Unlock()
		return model.Conversation{}, err
	}

	s.metrics.IncMessageAppended()
	s.publish(events.Event{Kind: events.KindMessageAppended, ConversationID: conversationID, Message: &m})
	w := s.enqueue()
	s.mu.Unlock()

	_ = s.persist(ctx, w, "append_message", true, func(ctx context.Context) error {
		return s.backend.AppendMessage(ctx, s.identityID, conversationID, m)
	})
	return updated, nil
}

// UpdateTitle renames the conversation in place.
func (s *Store) UpdateTitle(ctx context.Context, conversationID, title string) (model.Conversation, error) {
	c, _, err := s.updateTitle(ctx, conversationID, title, false)
	return c, err
}

// UpdateTitleIfDefault renames the conversation only while it still has the
// default title, so a derived title never overwrites one the user chose.
func (s *Store) UpdateTitleIfDefault(ctx context.Context, conversationID, title string) (bool, error) {
	_, changed, err := s.updateTitle(ctx, conversationID, title, true)
	return changed, err
}

func (s *Store) updateTitle(ctx context.Context, conversationID, title string, onlyDefault bool) (model.Conversation, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Conversation{}, false, ErrEmptyTitle
	}

	at := model.Now()
	changed := false

	s.mu.Lock()
	updated, err := s.replace(conversationID, func(c model.Conversation) (model.Conversation, bool) {
		if onlyDefault && !c.HasDefaultTitle() {
			return c, false
		}
		c.Title = title
		c.UpdatedAt = at
		changed = true
		return c, true
	})
	if err != nil || !changed {
		s.mu.Unlock()
		return updated, false, err
	}

	s.publish(events.Event{Kind: events.KindTitleUpdated, ConversationID: conversationID, Title: title})
	w := s.enqueue()
	s.mu.Unlock()

	_ = s.persist(ctx, w, "update_title", true, func(ctx context.Context) error {
		return s.backend.UpdateTitle(ctx, s.identityID, conversationID, title, at)
	})
	return updated, true, nil
}

// Delete removes the conversation and returns the list as it is afterwards.
func (s *Store) Delete(ctx context.Context, conversationID string) (Snapshot, error) {
	s.mu.Lock()
	if s.snap.Load().index(conversationID) < 0 {
		s.mu.Unlock()
		return Snapshot{}, ErrConversationNotFound
	}
	after := s.without(conversationID)
	s.snap.Store(after)

	s.metrics.IncConversationDeleted()
	s.publish(events.Event{Kind: events.KindConversationDeleted, ConversationID: conversationID})
	w := s.enqueue()
	s.mu.Unlock()

	_ = s.persist(ctx, w, "delete_conversation", true, func(ctx context.Context) error {
		err := s.backend.DeleteConversation(ctx, s.identityID, conversationID)
		if errors.Is(err, store.ErrConversationNotFound) {
			return nil
		}
		return err
	})
	return *after, nil
}

// replace swaps one conversation for fn's result in a fresh slice, keeping
// its position. Callers hold s.mu.
func (s *Store) replace(id string, fn func(model.Conversation) (model.Conversation, bool)) (model.Conversation, error) {
	before := s.snap.Load()
	i := before.index(id)
	if i < 0 {
		return model.Conversation{}, ErrConversationNotFound
	}

	updated, ok := fn(before.Conversations[i])
	if !ok {
		return before.Conversations[i], nil
	}

	next := make([]model.Conversation, len(before.Conversations))
	copy(next, before.Conversations)
	next[i] = updated
	s.snap.Store(&Snapshot{Conversations: next, Loaded: before.Loaded})
	return updated, nil
}

func (s *Store) without(id string) *Snapshot {
	before := s.snap.Load()
	next := make([]model.Conversation, 0, len(before.Conversations))
	for _, c := range before.Conversations {
		if c.ID != id {
			next = append(next, c)
		}
	}
	return &Snapshot{Conversations: next, Loaded: before.Loaded}
}

// queued is a reserved place in the write queue.
type queued struct {
	prev <-chan struct{}
	done chan struct{}
}

// enqueue reserves the next place in the write queue. Callers hold s.mu.
func (s *Store) enqueue() queued {
	w := queued{prev: s.tail, done: make(chan struct{})}
	s.tail = w.done
	return w
}

// persist waits for the writes queued before w, then runs write with
// retries. The write is detached from the caller's cancellation. When
// markStale is set, a final failure is logged, counted and leaves the
// store stale for the next EnsureLoaded.
func (s *Store) persist(ctx context.Context, w queued, op string, markStale bool, write func(context.Context) error) error {
	defer close(w.done)
	<-w.prev
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 0; ; attempt++ {
		if err = write(ctx); err == nil {
			return nil
		}
		if errors.Is(err, store.ErrConversationNotFound) || attempt >= len(s.backoff) {
			break
		}
		s.sleep(jitter(s.backoff[attempt]))
	}

	s.metrics.IncDurableWriteFailure(op)
	s.logger.Error("durable write failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	if markStale {
		s.stale.Store(true)
	}
	return err
}

// jitter spreads d over [d/2, 3d/2).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int64N(int64(d)))
}

func (s *Store) publish(e events.Event) {
	if s.notifier == nil {
		return
	}
	e.IdentityID = s.identityID
	s.notifier.Publish(e)
}
