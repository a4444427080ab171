package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"storedesk-admin/config"
	"storedesk-admin/core/access"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/kv"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

const testPassword = "counter2024"

type testEnv struct {
	t      *testing.T
	cfg    *config.AppConfig
	db     *sql.DB
	srv    *Server
	users  store.UsersStore
	kv     kv.Store
	cancel func()
}

type envSetup struct {
	cfg     *config.AppConfig
	fetcher access.Fetcher
	wrapKV  func(kv.Store) kv.Store
}

type envOption func(s *envSetup)

func withFetcher(f access.Fetcher) envOption {
	return func(s *envSetup) { s.fetcher = f }
}

func withConfig(mut func(cfg *config.AppConfig)) envOption {
	return func(s *envSetup) { mut(s.cfg) }
}

func withKV(wrap func(kv.Store) kv.Store) envOption {
	return func(s *envSetup) { s.wrapKV = wrap }
}

func testConfig(dir string) *config.AppConfig {
	return &config.AppConfig{
		AppEnv:   "dev",
		DBDriver: "sqlite",
		DBPath:   filepath.Join(dir, "api.db"),
		Pepper:   "pep",
		Sessions: config.SessionsConfig{TTL: time.Hour, CookieName: "storedesk_session", IdleEvict: 30 * time.Minute},
		Access: config.AccessConfig{
			CacheTTL:       5 * time.Minute,
			FetchTimeout:   2 * time.Second,
			BypassRoles:    []string{"superadmin", "admin"},
			UnmappedPolicy: "allow",
			PublicPaths:    []string{"/login", "/static", "/healthz", "/readyz", "/metrics", "/api/auth/login", access.MePath},
			SafeRoute:      "/dashboard",
			StorageName:    "permission-storage",
		},
		Guard:         config.GuardConfig{WaitTimeout: time.Second, RetryAfter: 1},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
	}
}

// newTestEnv wires a server whose permission stores fetch from its own
// access-control endpoint over a loopback httptest listener.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	setup := &envSetup{cfg: testConfig(t.TempDir())}
	for _, o := range opts {
		o(setup)
	}
	cfg, fetcher := setup.cfg, setup.fetcher
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, store.DialectSQLite, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	env := &testEnv{t: t, cfg: cfg, db: db, users: store.NewUsersStore(db), kv: kv.NewMemory("test")}
	if setup.wrapKV != nil {
		env.kv = setup.wrapKV(env.kv)
	}
	var srv *Server
	loopback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(loopback.Close)
	if fetcher == nil {
		fetcher = access.NewHTTPFetcher(loopback.URL, cfg.Access.FetchTimeout, loopback.Client())
	}
	registry := access.NewRegistry(fetcher, access.Options{
		TTL:          cfg.Access.CacheTTL,
		FetchTimeout: cfg.Access.FetchTimeout,
		BypassRoles:  cfg.Access.BypassRoles,
		StorageName:  cfg.Access.StorageName,
		Persist:      env.kv,
		Logger:       logger,
	})
	srv = NewServer(cfg, logger, ServerDeps{DB: db, Registry: registry})
	env.srv = srv
	for _, u := range []struct{ name, role string }{
		{"cashier01", "cashier"},
		{"manager01", "manager"},
		{"staff01", "staff"},
		{"owner", "admin"},
	} {
		env.addUser(u.name, u.role)
	}
	return env
}

func (e *testEnv) addUser(username, role string) {
	e.t.Helper()
	ph, err := auth.HashPassword(testPassword, e.cfg.Pepper)
	if err != nil {
		e.t.Fatal(err)
	}
	if _, err := e.users.Create(context.Background(), &store.User{Username: username, Role: role, PasswordHash: ph.Hash, Salt: ph.Salt, Active: true}); err != nil {
		e.t.Fatalf("create %s: %v", username, err)
	}
}

func (e *testEnv) login(username string) string {
	e.t.Helper()
	res, err := e.srv.sessionManager.Login(context.Background(), auth.Credentials{Username: username, Password: testPassword}, "127.0.0.1", "test")
	if err != nil {
		e.t.Fatalf("login %s: %v", username, err)
	}
	return res.Token
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: e.cfg.Sessions.CookieName, Value: token})
	}
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) get(path, token string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), token)
}
