package conversation

import (
	"context"
	"sync"

	"github.com/bytebuddy/bytebuddy/internal/store"
)

// Registry hands out one Store per identity. Stores are never shared
// between identities and are discarded on Drop.
type Registry struct {
	backend store.ConversationStore
	opts    Options

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry(backend store.ConversationStore, opts Options) *Registry {
	return &Registry{
		backend: backend,
		opts:    opts,
		stores:  make(map[string]*Store),
	}
}

// Get returns the identity's store, loading it on first use and reloading
// it when stale. A load error is returned alongside the (empty, loaded)
// store.
func (r *Registry) Get(ctx context.Context, identityID string) (*Store, error) {
	r.mu.Lock()
	s, ok := r.stores[identityID]
	if !ok {
		s = NewStore(identityID, r.backend, r.opts)
		r.stores[identityID] = s
	}
	r.mu.Unlock()

	return s, s.EnsureLoaded(ctx)
}

// Peek returns the identity's store without loading it.
func (r *Registry) Peek(identityID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[identityID]
	return s, ok
}

// Loaded reports whether the identity's list is in memory and loaded.
func (r *Registry) Loaded(identityID string) bool {
	s, ok := r.Peek(identityID)
	return ok && s.Snapshot().Loaded
}

// Drop discards all in-memory state for identityID.
func (r *Registry) Drop(identityID string) {
	r.mu.Lock()
	delete(r.stores, identityID)
	r.mu.Unlock()
}

// Len returns the number of identities with in-memory state.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
