package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"storedesk-admin/core/kv"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/utils"
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateUninitialized, StateLoading, StateReady, StateFailed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown access state %q", b)
}

const (
	DefaultTTL          = 5 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
	DefaultStorageName  = "permission-storage"
)

type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	BypassRoles  []string
	// Persist keeps snapshots across process restarts; nil disables it.
	Persist     kv.Store
	StorageName string
	Now         func() time.Time
	Logger      *utils.Logger
	Stats       *Stats
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.BypassRoles == nil {
		o.BypassRoles = rbac.DefaultBypassRoles()
	}
	if o.StorageName == "" {
		o.StorageName = DefaultStorageName
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Stats == nil {
		o.Stats = &Stats{}
	}
	return o
}

// Store is the permission state of one session. Initialize is the only
// operation doing network I/O; everything else reads memory.
type Store struct {
	token   string
	fetcher Fetcher
	opts    Options
	key     string

	group singleflight.Group

	mu      sync.RWMutex
	snap    *Snapshot
	failed  bool
	lastErr error
	gen     uint64
	running bool

	// persistMu orders snapshot writes against Clear's delete.
	persistMu sync.Mutex
}

func NewStore(token string, fetcher Fetcher, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		token:   token,
		fetcher: fetcher,
		opts:    opts,
		key:     opts.StorageName + ":" + utils.TokenDigest(token),
	}
}

// StorageKey is the kv key the snapshot persists under.
func (s *Store) StorageKey() string { return s.key }

// Initialize fetches the snapshot unless the cached one is still valid.
// Concurrent callers share one in-flight fetch. The fetch runs detached from
// ctx, so a caller giving up early does not cancel it for the others; ctx
// only bounds how long this caller waits.
func (s *Store) Initialize(ctx context.Context) error {
	if s.IsCacheValid() {
		s.opts.Stats.cacheHits.Add(1)
		return nil
	}
	s.mu.Lock()
	gen := s.gen
	s.running = true
	s.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return nil, s.fetch(detached, gen)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InitializeWithin is Initialize bounded by wait. On timeout the shared
// fetch keeps running and the store stays in whatever state it was.
func (s *Store) InitializeWithin(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return s.Initialize(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return s.Initialize(ctx)
}

func (s *Store) fetch(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrSessionCleared
	}
	if s.snap.validAt(s.opts.Now(), s.opts.TTL) {
		s.running = false
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	started := s.opts.Now()
	resp, err := s.fetcher.Fetch(fctx, s.token)
	if err == nil && resp == nil {
		err = errEmptyResponse
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.opts.Stats.fetchDiscarded.Add(1)
		s.opts.Logger.Debugf("ACCESS fetch discarded session=%s", utils.ShortDigest(s.token))
		return ErrSessionCleared
	}
	s.running = false
	if err != nil {
		s.failed = true
		s.lastErr = err
		s.mu.Unlock()
		s.opts.Stats.fetchFailed.Add(1)
		s.opts.Logger.Errorf("ACCESS fetch failed session=%s: %v", utils.ShortDigest(s.token), err)
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	snap := newSnapshot(resp, s.opts.Now())
	s.snap = snap
	s.failed = false
	s.lastErr = nil
	s.mu.Unlock()
	s.opts.Stats.fetchOK.Add(1)
	s.opts.Logger.Debugf("ACCESS fetched session=%s role=%s tabs=%d in %s", utils.ShortDigest(s.token), snap.Role, len(snap.Permissions), s.opts.Now().Sub(started))
	s.persist(ctx, gen, snap)
	return nil
}

func (s *Store) persist(ctx context.Context, gen uint64, snap *Snapshot) {
	if s.opts.Persist == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.opts.Logger.Errorf("ACCESS encode snapshot: %v", err)
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.RLock()
	current := s.gen == gen
	s.mu.RUnlock()
	if !current {
		return
	}
	if err := s.opts.Persist.Set(ctx, s.key, data, s.opts.TTL); err != nil {
		s.opts.Logger.Errorf("ACCESS persist snapshot: %v", err)
	}
}

// Rehydrate loads a persisted snapshot. It is trusted only within the TTL
// and never replaces a snapshot already in memory.
func (s *Store) Rehydrate(ctx context.Context) (bool, error) {
	if s.opts.Persist == nil {
		return false, nil
	}
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	data, err := s.opts.Persist.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = s.opts.Persist.Delete(ctx, s.key)
		return false, fmt.Errorf("decode persisted snapshot: %w", err)
	}
	snap.Role = rbac.NormalizeRole(snap.Role)
	if snap.Permissions == nil {
		snap.Permissions = rbac.TabPermissions{}
	}
	if !snap.validAt(s.opts.Now(), s.opts.TTL) {
		_ = s.opts.Persist.Delete(ctx, s.key)
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.snap != nil {
		return false, nil
	}
	s.snap = &snap
	s.failed = false
	s.lastErr = nil
	s.opts.Stats.rehydrated.Add(1)
	return true, nil
}

// HasPermission is true for bypass roles. Other roles are denied after a
// failed fetch until the next success, and otherwise get the named flag.
func (s *Store) HasPermission(tabKey string, action rbac.Action) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return false
	}
	if rbac.IsBypassRole(s.snap.Role, s.opts.BypassRoles) {
		return true
	}
	if s.failed {
		return false
	}
	return s.snap.Permissions.Allows(tabKey, action)
}

func (s *Store) fetching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Store) CanRead(tabKey string) bool { return s.HasPermission(tabKey, rbac.ActionRead) }

func (s *Store) IsCacheValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.validAt(s.opts.Now(), s.opts.TTL)
}

// Clear resets to uninitialized, drops the persisted copy and makes any
// in-flight fetch discard its result.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	s.snap = nil
	s.failed = false
	s.lastErr = nil
	s.running = false
	s.mu.Unlock()

	if s.opts.Persist == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.opts.Persist.Delete(ctx, s.key); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	return nil
}

// State is loading only while no snapshot exists; a refresh over a stale
// snapshot keeps reporting ready.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.failed:
		return StateFailed
	case s.snap != nil:
		return StateReady
	case s.running:
		return StateLoading
	default:
		return StateUninitialized
	}
}

func (s *Store) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return ""
	}
	return s.snap.Role
}

func (s *Store) IsBypass() bool {
	return rbac.IsBypassRole(s.Role(), s.opts.BypassRoles)
}

// Snapshot returns a copy of the current snapshot, nil when none.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

type Status struct {
	State      State      `json:"state"`
	Role       string     `json:"role,omitempty"`
	Bypass     bool       `json:"bypass"`
	CacheValid bool       `json:"cache_valid"`
	Refreshing bool       `json:"refreshing"`
	FetchedAt  *time.Time `json:"fetched_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Refreshing: s.running && s.snap != nil}
	switch {
	case s.failed:
		st.State = StateFailed
	case s.snap != nil:
		st.State = StateReady
	case s.running:
		st.State = StateLoading
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	if s.snap != nil {
		fetched := s.snap.FetchedAt
		expires := fetched.Add(s.opts.TTL)
		st.Role = s.snap.Role
		st.Bypass = rbac.IsBypassRole(s.snap.Role, s.opts.BypassRoles)
		st.CacheValid = s.snap.validAt(s.opts.Now(), s.opts.TTL)
		st.FetchedAt = &fetched
		st.ExpiresAt = &expires
	}
	return st
}
