package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storedesk-admin/config"
	"storedesk-admin/core/access"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/janitor"
	"storedesk-admin/core/navigation"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

type Server struct {
	cfg            *config.AppConfig
	router         chi.Router
	httpServer     *http.Server
	logger         *utils.Logger
	db             *sql.DB
	users          store.UsersStore
	sessions       store.SessionStore
	roles          store.RolesStore
	policy         *rbac.Policy
	sessionManager *auth.SessionManager
	registry       *access.Registry
	nav            *navigation.Tree
	navMap         *navigation.PathPermissionMap
	paths          *access.PathPolicy
	pages          *pageRenderer
	janitor        *janitor.Janitor
	loginLimiter   *requestLimiter
}

func NewServer(cfg *config.AppConfig, logger *utils.Logger, deps ServerDeps) *Server {
	if deps.Users == nil && deps.DB != nil {
		deps.Users = store.NewUsersStore(deps.DB)
	}
	if deps.Sessions == nil && deps.DB != nil {
		deps.Sessions = store.NewSessionsStore(deps.DB)
	}
	if deps.Roles == nil && deps.DB != nil {
		deps.Roles = store.NewRolesStore(deps.DB)
	}
	if deps.Policy == nil {
		deps.Policy = rbac.NewPolicy(nil)
	}
	if deps.SessionManager == nil {
		deps.SessionManager = auth.NewSessionManager(deps.Users, deps.Sessions, cfg.EffectivePepper(), cfg.Sessions.TTL, logger)
	}
	if deps.Navigation == nil {
		deps.Navigation = navigation.Default()
	}
	if deps.Registry == nil {
		deps.Registry = access.NewRegistry(
			access.NewHTTPFetcher(cfg.Access.UpstreamURL, cfg.Access.FetchTimeout, nil),
			access.Options{
				TTL:          cfg.Access.CacheTTL,
				FetchTimeout: cfg.Access.FetchTimeout,
				BypassRoles:  cfg.Access.BypassRoles,
				StorageName:  cfg.Access.StorageName,
				Logger:       logger,
			},
		)
	}
	navMap := navigation.GeneratePathPermissionMap(deps.Navigation.AllItems())
	s := &Server{
		cfg:            cfg,
		router:         chi.NewRouter(),
		logger:         logger,
		db:             deps.DB,
		users:          deps.Users,
		sessions:       deps.Sessions,
		roles:          deps.Roles,
		policy:         deps.Policy,
		sessionManager: deps.SessionManager,
		registry:       deps.Registry,
		nav:            deps.Navigation,
		navMap:         navMap,
		paths:          access.NewPathPolicy(navMap, access.ParseUnmappedPolicy(cfg.Access.UnmappedPolicy), cfg.Access.PublicPaths),
		pages:          newPageRenderer(),
		janitor:        deps.Janitor,
		loginLimiter:   newLimiter(5, time.Minute),
	}
	for _, c := range navMap.Collisions() {
		logger.Warnf("navigation path %s declared twice: kept %s, dropped %s", c.Path, c.KeptKey, c.DroppedKey)
	}
	if err := s.bootstrapRoles(context.Background()); err != nil {
		logger.Errorf("bootstrap roles: %v", err)
	}
	s.registerRoutes()
	return s
}

func (s *Server) bootstrapRoles(ctx context.Context) error {
	if s.roles == nil {
		return s.policy.Replace(rbac.DefaultRoles())
	}
	return rbac.EnsureBuiltInAndRefresh(ctx, s.roles, s.policy)
}

// refreshPolicy reloads role grants from SQL. Cached permission stores pick
// the change up on their next fetch.
func (s *Server) refreshPolicy(ctx context.Context) error {
	if s.roles == nil {
		return nil
	}
	return rbac.RefreshFromStore(ctx, s.roles, s.policy)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Config() *config.AppConfig { return s.cfg }

func (s *Server) Registry() *access.Registry { return s.registry }

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	var err error
	if s.cfg.TLSEnabled {
		err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
