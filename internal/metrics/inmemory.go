package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CompletionStats aggregates provider calls for one task.
type CompletionStats struct {
	Count   uint64
	Failed  uint64
	TotalNs int64
}

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SignUps                uint64
	SignInSuccesses        uint64
	SignInFailures         uint64
	PasswordResetRequests  uint64
	PasswordResetsComplete uint64
	ConversationsCreated   uint64
	ConversationsDeleted   uint64
	MessagesAppended       uint64
	TitlesDerived          uint64
	DurableWriteFailures   map[string]uint64
	Completions            map[string]CompletionStats
}

// SortedKeys returns the keys of m in order, for stable exposition.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	signUps                atomic.Uint64
	signInSuccesses        atomic.Uint64
	signInFailures         atomic.Uint64
	passwordResetRequests  atomic.Uint64
	passwordResetsComplete atomic.Uint64
	conversationsCreated   atomic.Uint64
	conversationsDeleted   atomic.Uint64
	messagesAppended       atomic.Uint64
	titlesDerived          atomic.Uint64

	mu            sync.Mutex
	writeFailures map[string]uint64
	completions   map[string]CompletionStats
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		writeFailures: make(map[string]uint64),
		completions:   make(map[string]CompletionStats),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	failures := make(map[string]uint64, len(m.writeFailures))
	for k, v := range m.writeFailures {
		failures[k] = v
	}
	completions := make(map[string]CompletionStats, len(m.completions))
	for k, v := range m.completions {
		completions[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		SignUps:                m.signUps.Load(),
		SignInSuccesses:        m.signInSuccesses.Load(),
		SignInFailures:         m.signInFailures.Load(),
		PasswordResetRequests:  m.passwordResetRequests.Load(),
		PasswordResetsComplete: m.passwordResetsComplete.Load(),
		ConversationsCreated:   m.conversationsCreated.Load(),
		ConversationsDeleted:   m.conversationsDeleted.Load(),
		MessagesAppended:       m.messagesAppended.Load(),
		TitlesDerived:          m.titlesDerived.Load(),
		DurableWriteFailures:   failures,
		Completions:            completions,
	}
}

// IncSignUp increments the sign-up counter.
func (m *InMemoryRecorder) IncSignUp() { m.signUps.Add(1) }

// IncSignIn counts a sign-in attempt by outcome.
func (m *InMemoryRecorder) IncSignIn(outcome string) {
	if outcome == OutcomeSuccess {
		m.signInSuccesses.Add(1)
		return
	}
	m.signInFailures.Add(1)
}

// IncPasswordResetRequested increments the reset request counter.
func (m *InMemoryRecorder) IncPasswordResetRequested() { m.passwordResetRequests.Add(1) }

// IncPasswordResetCompleted increments the completed reset counter.
func (m *InMemoryRecorder) IncPasswordResetCompleted() { m.passwordResetsComplete.Add(1) }

// IncConversationCreated increments the conversation created counter.
func (m *InMemoryRecorder) IncConversationCreated() { m.conversationsCreated.Add(1) }

// IncConversationDeleted increments the conversation deleted counter.
func (m *InMemoryRecorder) IncConversationDeleted() { m.conversationsDeleted.Add(1) }

// IncMessageAppended increments the message counter.
func (m *InMemoryRecorder) IncMessageAppended() { m.messagesAppended.Add(1) }

// IncTitleDerived increments the derived title counter.
func (m *InMemoryRecorder) IncTitleDerived() { m.titlesDerived.Add(1) }

// IncDurableWriteFailure counts a write that exhausted its retries.
func (m *InMemoryRecorder) IncDurableWriteFailure(op string) {
	m.mu.Lock()
	m.writeFailures[op]++
	m.mu.Unlock()
}

// ObserveCompletion records one provider call.
func (m *InMemoryRecorder) ObserveCompletion(task string, duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.completions[task]
	s.Count++
	s.TotalNs += duration.Nanoseconds()
	if failed {
		s.Failed++
	}
	m.completions[task] = s
}
