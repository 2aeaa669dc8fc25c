// Package events fans conversation changes out to live subscribers of the
// same identity.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytebuddy/bytebuddy/internal/model"
)

// Kind names an event type.
type Kind string

const (
	KindConversationsLoaded Kind = "conversations.loaded"
	KindConversationCreated Kind = "conversation.created"
	KindConversationDeleted Kind = "conversation.deleted"
	KindTitleUpdated        Kind = "conversation.title_updated"
	KindMessageAppended     Kind = "message.appended"
	KindStateChanged        Kind = "chat.state_changed"
)

// Event is one change to an identity's conversations.
type Event struct {
	Kind           Kind                `json:"kind"`
	IdentityID     string              `json:"-"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Conversation   *model.Conversation `json:"conversation,omitempty"`
	Message        *model.Message      `json:"message,omitempty"`
	Title          string              `json:"title,omitempty"`
	State          string              `json:"state,omitempty"`
	At             time.Time           `json:"at"`
}

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// Hub routes events to subscribers by identity.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub whose subscribers queue up to buffer events.
func NewHub(logger *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger.With(slog.String("component", "events")),
	}
}

// Publish delivers e to every subscriber of e.IdentityID without blocking.
// Subscribers whose queue is full miss the event.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[e.IdentityID] {
		select {
		case sub.ch <- e:
		default:
			if sub.dropped.Add(1) == 1 {
				h.logger.Warn("subscriber too slow, dropping events",
					slog.String("identity_id", e.IdentityID),
				)
			}
		}
	}
}

// Subscribe registers a new subscriber for identityID.
func (h *Hub) Subscribe(identityID string) *Subscription {
	sub := &Subscription{
		hub:        h,
		identityID: identityID,
		ch:         make(chan Event, h.buffer),
	}

	h.mu.Lock()
	if h.subs[identityID] == nil {
		h.subs[identityID] = make(map[*Subscription]struct{})
	}
	h.subs[identityID][sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Subscribers returns the number of live subscribers for identityID.
func (h *Hub) Subscribers(identityID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[identityID])
}

// Subscription is one consumer's view of the hub.
type Subscription struct {
	hub        *Hub
	identityID string
	ch         chan Event
	dropped    atomic.Uint64
	once       sync.Once
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events this subscriber missed.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.subs[s.identityID], s)
		if len(h.subs[s.identityID]) == 0 {
			delete(h.subs, s.identityID)
		}
		close(s.ch)
		h.mu.Unlock()
	})
}
