package appbootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"storedesk-admin/api"
	"storedesk-admin/config"
	"storedesk-admin/core/access"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/bootstrap"
	"storedesk-admin/core/janitor"
	"storedesk-admin/core/kv"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

type Runtime struct {
	DB         *sql.DB
	KV         kv.Store
	Server     *api.Server
	Janitor    *janitor.Janitor
	background api.BackgroundController

	mu       sync.Mutex
	bgCancel context.CancelFunc
}

type composition struct {
	serverDeps api.ServerDeps
	sessions   store.SessionStore
	kv         kv.Store
	janitor    *janitor.Janitor
}

func InitRuntime(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (*Runtime, error) {
	if err := ensureDataDir(cfg, logger); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("db init: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, store.Dialect(cfg), logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if err := bootstrap.EnsureDefaultAdmin(ctx, db, cfg, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	c, err := composeRuntime(ctx, cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("compose runtime: %w", err)
	}
	srv := api.NewServer(cfg, logger, c.serverDeps)
	var workers []api.BackgroundWorker
	if c.janitor != nil {
		workers = append(workers, c.janitor)
	}
	return &Runtime{
		DB:         db,
		KV:         c.kv,
		Server:     srv,
		Janitor:    c.janitor,
		background: api.BuildBackgroundController(c.sessions, logger, workers...),
	}, nil
}

func composeRuntime(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*composition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	roles := store.NewRolesStore(db)
	policy := rbac.NewPolicy(nil)
	sm := auth.NewSessionManager(users, sessions, cfg.EffectivePepper(), cfg.Sessions.TTL, logger)

	var snapshots *store.KVStore
	var dbKV kv.Store
	if cfg.Storage.Driver == kv.DriverDB {
		snapshots = store.NewKVStore(db)
		dbKV = snapshots
	}
	persist, err := kv.Open(ctx, kv.Config{
		Driver:        cfg.Storage.Driver,
		Prefix:        cfg.Storage.Prefix,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
	}, dbKV)
	if err != nil {
		return nil, err
	}
	logger.Printf("permission snapshots stored in %s", cfg.Storage.Driver)

	registry := access.NewRegistry(
		access.NewHTTPFetcher(cfg.Access.UpstreamURL, cfg.Access.FetchTimeout, nil),
		access.Options{
			TTL:          cfg.Access.CacheTTL,
			FetchTimeout: cfg.Access.FetchTimeout,
			BypassRoles:  cfg.Access.BypassRoles,
			Persist:      persist,
			StorageName:  cfg.Access.StorageName,
			Logger:       logger,
		},
	)

	var j *janitor.Janitor
	if cfg.Janitor.Enabled {
		jobs := janitorJobs(cfg, janitorDeps{
			registry:       registry,
			sessionManager: sm,
			sessions:       sessions,
			refreshPolicy: func(ctx context.Context) error {
				return rbac.RefreshFromStore(ctx, roles, policy)
			},
			logger: logger,
		}, snapshots)
		j, err = janitor.New(logger, jobs...)
		if err != nil {
			return nil, errors.Join(err, persist.Close())
		}
	}

	return &composition{
		serverDeps: api.ServerDeps{
			DB:             db,
			Users:          users,
			Sessions:       sessions,
			Roles:          roles,
			Policy:         policy,
			SessionManager: sm,
			Registry:       registry,
			Janitor:        j,
		},
		sessions: sessions,
		kv:       persist,
		janitor:  j,
	}, nil
}

func (r *Runtime) StartBackground(ctx context.Context) {
	if r == nil || r.background == nil {
		return
	}
	r.mu.Lock()
	if r.bgCancel != nil {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.bgCancel = cancel
	r.mu.Unlock()
	r.background.Start(runCtx)
}

func (r *Runtime) StopBackground(ctx context.Context) error {
	if r == nil || r.background == nil {
		return nil
	}
	r.mu.Lock()
	cancel := r.bgCancel
	r.bgCancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.background.Stop(ctx)
}

// Close releases the snapshot store and the database.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.KV != nil {
		errs = append(errs, r.KV.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}
