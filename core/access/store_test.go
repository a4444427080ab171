package access

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storedesk-admin/core/kv"
	"storedesk-admin/core/rbac"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingFetcher struct {
	calls atomic.Int32
	resp  *MeResponse
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context, token string) (*MeResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func cashierResponse() *MeResponse {
	return &MeResponse{
		Role: "cashier",
		Permissions: rbac.TabPermissions{
			"inventory.category": {Read: true, Create: false},
		},
	}
}

func newTestStore(f Fetcher, clock *fakeClock, persist kv.Store) *Store {
	return NewStore("tok-1", f, Options{TTL: 5 * time.Minute, Now: clock.Now, Persist: persist})
}

func TestStoreCashierScenario(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(&countingFetcher{resp: cashierResponse()}, clock, nil)
	require.NoError(t, s.Initialize(context.Background()))

	require.True(t, s.HasPermission("inventory.category", rbac.ActionRead))
	require.False(t, s.HasPermission("inventory.category", rbac.ActionCreate))
	require.False(t, s.HasPermission("inventory.warranty", rbac.ActionRead))
	require.Equal(t, "cashier", s.Role())
	require.Equal(t, StateReady, s.State())
}

func TestStoreBypassRolesAlwaysPass(t *testing.T) {
	for _, role := range []string{"admin", "superadmin", "SuperAdmin"} {
		clock := newFakeClock()
		s := newTestStore(&countingFetcher{resp: &MeResponse{Role: role}}, clock, nil)
		require.NoError(t, s.Initialize(context.Background()))
		for _, key := range []string{"hrm.payroll", "superadmin.tenants", "not.a.tab", ""} {
			for _, a := range rbac.AllActions() {
				require.Truef(t, s.HasPermission(key, a), "%s must pass %s/%s", role, key, a)
			}
		}
		require.True(t, s.IsBypass())
	}
}

func TestStoreBypassFromConfig(t *testing.T) {
	clock := newFakeClock()
	s := NewStore("tok", &countingFetcher{resp: &MeResponse{Role: "manager"}}, Options{
		Now:         clock.Now,
		BypassRoles: []string{"manager"},
	})
	require.NoError(t, s.Initialize(context.Background()))
	require.True(t, s.HasPermission("superadmin.plans", rbac.ActionDelete))
}

func TestStoreAbsentKeyDenied(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(&countingFetcher{resp: &MeResponse{Role: "staff", Permissions: rbac.TabPermissions{}}}, clock, nil)
	require.False(t, s.HasPermission("dashboard", rbac.ActionRead), "uninitialized store must deny")
	require.NoError(t, s.Initialize(context.Background()))
	for _, key := range rbac.AllTabKeys() {
		require.False(t, s.HasPermission(key, rbac.ActionRead))
	}
}

func TestStoreCacheValidity(t *testing.T) {
	clock := newFakeClock()
	f := &countingFetcher{resp: cashierResponse()}
	s := newTestStore(f, clock, nil)
	require.False(t, s.IsCacheValid())

	require.NoError(t, s.Initialize(context.Background()))
	require.True(t, s.IsCacheValid())

	clock.Advance(4 * time.Minute)
	require.NoError(t, s.Initialize(context.Background()))
	require.Equal(t, int32(1), f.calls.Load(), "valid cache must not refetch")

	clock.Advance(time.Minute)
	require.False(t, s.IsCacheValid())
	require.NoError(t, s.Initialize(context.Background()))
	require.Equal(t, int32(2), f.calls.Load())
	require.True(t, s.IsCacheValid())

	require.NoError(t, s.Clear(context.Background()))
	require.False(t, s.IsCacheValid())
	require.Equal(t, StateUninitialized, s.State())
	require.Nil(t, s.Snapshot())
}

func TestStoreConcurrentInitializeSingleCall(t *testing.T) {
	clock := newFakeClock()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f := FetcherFunc(func(ctx context.Context, token string) (*MeResponse, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return cashierResponse(), nil
	})
	s := newTestStore(f, clock, nil)

	errs := make(chan error, 2)
	go func() { errs <- s.Initialize(context.Background()) }()
	<-entered
	require.Equal(t, StateLoading, s.State())
	go func() { errs <- s.Initialize(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, StateReady, s.State())
}

func TestStoreFetchFailureKeepsStaleState(t *testing.T) {
	clock := newFakeClock()
	f := &countingFetcher{resp: cashierResponse()}
	s := newTestStore(f, clock, nil)
	require.NoError(t, s.Initialize(context.Background()))
	before := s.Snapshot()

	clock.Advance(10 * time.Minute)
	f.err = errors.New("connection refused")
	err := s.Initialize(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorContains(t, err, "connection refused")

	require.Equal(t, StateFailed, s.State())
	require.Equal(t, before, s.Snapshot(), "stale snapshot must be retained")
	require.Error(t, s.LastError())
	require.False(t, s.HasPermission("inventory.category", rbac.ActionRead), "non-bypass roles fail closed")
	require.NotEmpty(t, s.Status().Error)

	f.err = nil
	require.NoError(t, s.Initialize(context.Background()))
	require.Equal(t, StateReady, s.State())
	require.True(t, s.HasPermission("inventory.category", rbac.ActionRead))
	require.NoError(t, s.LastError())
}

func TestStoreFetchFailureBypassStillPasses(t *testing.T) {
	clock := newFakeClock()
	f := &countingFetcher{resp: &MeResponse{Role: "admin"}}
	s := newTestStore(f, clock, nil)
	require.NoError(t, s.Initialize(context.Background()))
	clock.Advance(time.Hour)
	f.err = errors.New("timeout")
	require.Error(t, s.Initialize(context.Background()))
	require.True(t, s.HasPermission("settings.roles", rbac.ActionUpdate))
}

func TestStoreFirstFetchFailure(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(&countingFetcher{err: errors.New("401")}, clock, nil)
	require.ErrorIs(t, s.Initialize(context.Background()), ErrFetchFailed)
	require.Equal(t, StateFailed, s.State())
	require.Nil(t, s.Snapshot())
	require.False(t, s.HasPermission("dashboard", rbac.ActionRead))
}

func TestStoreNilResponseIsFailure(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, token string) (*MeResponse, error) {
		return nil, nil
	})
	s := NewStore("tok", f, Options{})
	require.NotPanics(t, func() {
		require.ErrorIs(t, s.Initialize(context.Background()), ErrFetchFailed)
	})
	require.Equal(t, StateFailed, s.State())
	require.Nil(t, s.Snapshot())
	require.False(t, s.HasPermission("dashboard", rbac.ActionRead))
}

func TestStoreFetchTimeoutIsFailure(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, token string) (*MeResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := NewStore("tok", f, Options{FetchTimeout: 20 * time.Millisecond})
	err := s.Initialize(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateFailed, s.State())
}

func TestStoreCallerCancelDoesNotCancelFetch(t *testing.T) {
	release := make(chan struct{})
	f := FetcherFunc(func(ctx context.Context, token string) (*MeResponse, error) {
		select {
		case <-release:
			return cashierResponse(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	s := NewStore("tok", f, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Initialize(ctx), context.DeadlineExceeded)
	require.Equal(t, StateLoading, s.State())

	close(release)
	require.Eventually(t, func() bool { return s.State() == StateReady }, time.Second, time.Millisecond)
}

func TestStoreInitializeWithinBoundsWait(t *testing.T) {
	release := make(chan struct{})
	f := FetcherFunc(func(ctx context.Context, token string) (*MeResponse, error) {
		<-release
		return cashierResponse(), nil
	})
	s := NewStore("tok", f, Options{})
	require.ErrorIs(t, s.InitializeWithin(context.Background(), 10*time.Millisecond), context.DeadlineExceeded)
	require.Equal(t, StateLoading, s.State())
	close(release)
	require.NoError(t, s.InitializeWithin(context.Background(), time.Second))
	require.Equal(t, StateReady, s.State())
}

func TestStoreClearDuringFetchDiscardsResult(t *testing.T) {
	clock := newFakeClock()
	entered := make(chan struct{})
	release := make(chan struct{})
	f := FetcherFunc(func(ctx context.Context, token string) (*MeResponse, error) {
		close(entered)
		<-release
		return &MeResponse{Role: "admin"}, nil
	})
	persist := kv.NewMemory("")
	s := newTestStore(f, clock, persist)

	done := make(chan error, 1)
	go func() { done <- s.Initialize(context.Background()) }()
	<-entered
	require.NoError(t, s.Clear(context.Background()))
	close(release)

	require.ErrorIs(t, <-done, ErrSessionCleared)
	require.Equal(t, StateUninitialized, s.State())
	require.False(t, s.HasPermission("dashboard", rbac.ActionRead))
	_, err := persist.Get(context.Background(), s.StorageKey())
	require.ErrorIs(t, err, kv.ErrNotFound, "discarded result must not be persisted")
	require.Equal(t, int64(1), s.opts.Stats.Snapshot().FetchDiscarded)
}

func TestStorePersistAndRehydrate(t *testing.T) {
	clock := newFakeClock()
	persist := kv.NewMemory("")
	first := newTestStore(&countingFetcher{resp: cashierResponse()}, clock, persist)
	require.NoError(t, first.Initialize(context.Background()))

	raw, err := persist.Get(context.Background(), first.StorageKey())
	require.NoError(t, err)
	var stored Snapshot
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Equal(t, "cashier", stored.Role)

	f := &countingFetcher{resp: cashierResponse()}
	second := newTestStore(f, clock, persist)
	ok, err := second.Rehydrate(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, second.IsCacheValid())
	require.NoError(t, second.Initialize(context.Background()))
	require.Equal(t, int32(0), f.calls.Load(), "rehydrated valid snapshot must be trusted")
	require.True(t, second.HasPermission("inventory.category", rbac.ActionRead))
}

func TestStoreRehydrateExpiredNotTrusted(t *testing.T) {
	clock := newFakeClock()
	persist := kv.NewMemory("")
	s := newTestStore(nil, clock, persist)
	old, err := json.Marshal(Snapshot{Role: "admin", FetchedAt: clock.Now().Add(-6 * time.Minute)})
	require.NoError(t, err)
	require.NoError(t, persist.Set(context.Background(), s.StorageKey(), old, 0))

	ok, err := s.Rehydrate(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, s.HasPermission("dashboard", rbac.ActionRead))
	_, err = persist.Get(context.Background(), s.StorageKey())
	require.ErrorIs(t, err, kv.ErrNotFound, "expired snapshot must be dropped")
}

func TestStoreRehydrateCorrupt(t *testing.T) {
	clock := newFakeClock()
	persist := kv.NewMemory("")
	s := newTestStore(nil, clock, persist)
	require.NoError(t, persist.Set(context.Background(), s.StorageKey(), []byte("{"), 0))
	ok, err := s.Rehydrate(context.Background())
	require.Error(t, err)
	require.False(t, ok)
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(&countingFetcher{resp: cashierResponse()}, clock, nil)
	require.NoError(t, s.Initialize(context.Background()))
	snap := s.Snapshot()
	snap.Permissions["inventory.warranty"] = rbac.FullAccess()
	require.False(t, s.HasPermission("inventory.warranty", rbac.ActionRead))
}

func TestStoreStatus(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(&countingFetcher{resp: cashierResponse()}, clock, nil)
	require.Equal(t, StateUninitialized, s.Status().State)
	require.NoError(t, s.Initialize(context.Background()))
	st := s.Status()
	require.Equal(t, StateReady, st.State)
	require.Equal(t, "cashier", st.Role)
	require.True(t, st.CacheValid)
	require.False(t, st.Bypass)
	require.NotNil(t, st.ExpiresAt)
	require.Equal(t, clock.Now().Add(5*time.Minute), *st.ExpiresAt)

	b, err := json.Marshal(st)
	require.NoError(t, err)
	require.Contains(t, string(b), `"state":"ready"`)

	var back Status
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, StateReady, back.State)
	var bad State
	require.Error(t, bad.UnmarshalText([]byte("warming")))
}
