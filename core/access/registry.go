package access

import (
	"context"
	"sync"
	"time"

	"storedesk-admin/core/utils"
)

// Registry owns exactly one Store per session token.
type Registry struct {
	fetcher Fetcher
	opts    Options

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	store     *Store
	lastUsed  time.Time
	rehydrate sync.Once
}

func NewRegistry(fetcher Fetcher, opts Options) *Registry {
	return &Registry{
		fetcher: fetcher,
		opts:    opts.withDefaults(),
		entries: map[string]*registryEntry{},
	}
}

func (r *Registry) Stats() *Stats { return r.opts.Stats }

// ForSession returns the session's store, creating it on first use and
// restoring any persisted snapshot still within its TTL.
func (r *Registry) ForSession(ctx context.Context, token string) *Store {
	id := utils.TokenDigest(token)
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &registryEntry{store: NewStore(token, r.fetcher, r.opts)}
		r.entries[id] = e
	}
	e.lastUsed = r.opts.Now()
	r.mu.Unlock()

	e.rehydrate.Do(func() {
		ok, err := e.store.Rehydrate(context.WithoutCancel(ctx))
		if err != nil {
			r.opts.Logger.Errorf("ACCESS rehydrate session=%s: %v", utils.ShortDigest(token), err)
			return
		}
		if ok {
			r.opts.Logger.Debugf("ACCESS rehydrated session=%s", utils.ShortDigest(token))
		}
	})
	return e.store
}

// Lookup returns the store only if it already exists.
func (r *Registry) Lookup(token string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[utils.TokenDigest(token)]; ok {
		return e.store
	}
	return nil
}

// Clear ends the session's permission state, in memory and persisted.
func (r *Registry) Clear(ctx context.Context, token string) error {
	id := utils.TokenDigest(token)
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if !ok {
		return NewStore(token, r.fetcher, r.opts).Clear(ctx)
	}
	return e.store.Clear(ctx)
}

// EvictIdle drops stores unused for longer than idle. Stores with a fetch in
// flight are kept. Persisted snapshots stay so the next request can rehydrate.
func (r *Registry) EvictIdle(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := r.opts.Now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) && !e.store.fetching() {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
