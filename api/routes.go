package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storedesk-admin/api/handlers"
	"storedesk-admin/core/access"
	"storedesk-admin/core/rbac"
)

func (s *Server) registerRoutes() {
	s.router.Use(s.recoverMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.securityHeadersMiddleware)

	s.router.Handle("/static/*", http.StripPrefix("/static/", staticHandler()))
	s.registerObservabilityRoutes()

	authHandler := handlers.NewAuthHandler(s.cfg, s.sessionManager, s.registry, s.logger)
	accessHandler := handlers.NewAccessHandler(s.cfg, s.sessionManager, s.policy, s.registry, s.nav, s.logger)
	settingsHandler := handlers.NewSettingsHandler(s.users, s.roles, s.refreshPolicy, s.logger)

	s.router.Get("/", s.redirectToEntry)
	s.router.Get("/login", s.loginPage)
	s.router.With(s.rateLimitForm).Post("/login", s.loginSubmit)
	s.router.With(s.withSession).Post("/logout", s.logoutSubmit)

	s.router.Get(access.MePath, accessHandler.Me)

	apiRouter := chi.NewRouter()
	apiRouter.Use(s.jsonMiddleware)
	apiRouter.With(s.rateLimitJSON).Post("/auth/login", authHandler.Login)
	apiRouter.Group(func(r chi.Router) {
		r.Use(s.withSession)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)
		r.Get("/navigation", accessHandler.Navigation)
		r.Get("/access/state", accessHandler.State)

		r.With(s.requireTab("settings.roles")).Get("/settings/roles", settingsHandler.ListRoles)
		r.With(s.requireTabAction("settings.roles", rbac.ActionUpdate)).Put("/settings/roles/{role}/grants/{tab}", settingsHandler.SetGrant)
		r.With(s.requireTab("settings.users")).Get("/settings/users", settingsHandler.ListUsers)
	})
	s.router.Mount("/api", apiRouter)

	s.router.With(s.withSession, s.guardByPath).Get("/*", s.page)
}

func (s *Server) redirectToEntry(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.cfg.Access.SafeRoute, http.StatusFound)
}
