package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"storedesk-admin/core/auth"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

type SettingsHandler struct {
	users   store.UsersStore
	roles   store.RolesStore
	refresh func(context.Context) error
	logger  *utils.Logger
}

func NewSettingsHandler(users store.UsersStore, roles store.RolesStore, refresh func(context.Context) error, logger *utils.Logger) *SettingsHandler {
	return &SettingsHandler{users: users, roles: roles, refresh: refresh, logger: logger}
}

func (h *SettingsHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	if h.roles == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []store.Role{}})
		return
	}
	items, err := h.roles.List(r.Context())
	if err != nil {
		h.logger.Errorf("list roles: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// SetGrant replaces one tab grant of a role. Sessions already holding a
// snapshot see the change once their cache expires.
func (h *SettingsHandler) SetGrant(w http.ResponseWriter, r *http.Request) {
	roleName := rbac.NormalizeRole(chi.URLParam(r, "role"))
	tab := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "tab")))
	if !rbac.IsKnownTab(tab) {
		writeError(w, http.StatusBadRequest, "unknown tab")
		return
	}
	var flags rbac.Flags
	if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	if h.roles == nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}
	role, err := h.roles.FindByName(r.Context(), roleName)
	if err != nil {
		h.logger.Errorf("find role %s: %v", roleName, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if role == nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}
	grant := store.TabGrant{TabKey: tab, Read: flags.Read, Create: flags.Create, Update: flags.Update, Delete: flags.Delete}
	if err := h.roles.SetGrant(r.Context(), roleName, grant); err != nil {
		h.logger.Errorf("set grant %s/%s: %v", roleName, tab, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if h.refresh != nil {
		if err := h.refresh(r.Context()); err != nil {
			h.logger.Errorf("refresh policy: %v", err)
		}
	}
	actor := "-"
	if sr := auth.SessionFrom(r.Context()); sr != nil {
		actor = sr.Username
	}
	h.logger.Printf("ROLE grant role=%s tab=%s flags=%+v by=%s", roleName, tab, flags, actor)
	writeJSON(w, http.StatusOK, map[string]any{"role": roleName, "tab": tab, "flags": flags})
}

type userItem struct {
	auth.UserDTO
	Active bool `json:"active"`
}

func (h *SettingsHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Errorf("list users: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]userItem, 0, len(users))
	for i := range users {
		out = append(out, userItem{UserDTO: auth.UserToDTO(&users[i]), Active: users[i].Active})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}
