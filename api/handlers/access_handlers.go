package handlers

import (
	"net/http"
	"strconv"

	"storedesk-admin/config"
	"storedesk-admin/core/access"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/navigation"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/utils"
)

type AccessHandler struct {
	cfg            *config.AppConfig
	sessionManager *auth.SessionManager
	policy         *rbac.Policy
	registry       *access.Registry
	nav            *navigation.Tree
	logger         *utils.Logger
}

func NewAccessHandler(cfg *config.AppConfig, sm *auth.SessionManager, policy *rbac.Policy, registry *access.Registry, nav *navigation.Tree, logger *utils.Logger) *AccessHandler {
	return &AccessHandler{cfg: cfg, sessionManager: sm, policy: policy, registry: registry, nav: nav, logger: logger}
}

// Me is the access-control endpoint permission stores fetch from. It
// authenticates the token itself so it can be served outside the session
// middleware.
func (h *AccessHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r, h.cfg.Sessions.CookieName)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sr, err := h.sessionManager.Resolve(r.Context(), token)
	if err != nil {
		h.logger.Errorf("ACCESS me resolve: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sr == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	perms := h.policy.PermissionsForRole(sr.Role)
	if perms == nil {
		h.logger.Warnf("ACCESS me unknown role=%s user=%s", sr.Role, sr.Username)
		perms = rbac.TabPermissions{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, access.MeResponse{Role: sr.Role, Permissions: perms})
}

// Navigation returns the sidebar sections the session may read.
func (h *AccessHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	sr := auth.SessionFrom(r.Context())
	if sr == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	st := h.registry.ForSession(r.Context(), sr.ID)
	_ = st.InitializeWithin(r.Context(), h.cfg.Guard.WaitTimeout)
	state := st.State()
	if state == access.StateUninitialized || state == access.StateLoading {
		w.Header().Set("Retry-After", strconv.Itoa(h.cfg.Guard.RetryAfter))
		writeJSON(w, http.StatusAccepted, map[string]any{"state": state})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":    state,
		"role":     st.Role(),
		"sections": h.nav.VisibleSections(st.CanRead),
	})
}

func (h *AccessHandler) State(w http.ResponseWriter, r *http.Request) {
	sr := auth.SessionFrom(r.Context())
	if sr == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, h.registry.ForSession(r.Context(), sr.ID).Status())
}
