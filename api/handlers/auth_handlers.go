package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"storedesk-admin/config"
	"storedesk-admin/core/access"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/utils"
)

type AuthHandler struct {
	cfg            *config.AppConfig
	sessionManager *auth.SessionManager
	registry       *access.Registry
	logger         *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, sm *auth.SessionManager, registry *access.Registry, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, sessionManager: sm, registry: registry, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	cred.Username = strings.ToLower(strings.TrimSpace(cred.Username))
	if err := utils.ValidateUsername(cred.Username); err != nil {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	res, err := h.sessionManager.Login(r.Context(), cred, ip, r.UserAgent())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrInactiveUser) {
			h.logger.Printf("AUTH login failed user=%s ip=%s", cred.Username, ip)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Errorf("AUTH login: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	setSessionCookie(w, r, h.cfg, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, res)
}

// Logout drops the session and its permission state, persisted copy included.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sr := auth.SessionFrom(r.Context())
	if sr == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	// The session goes first so no request can re-create its store after the clear.
	if err := h.sessionManager.Logout(r.Context(), sr.ID); err != nil {
		h.logger.Errorf("AUTH logout user=%s: %v", sr.Username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.registry.Clear(r.Context(), sr.ID); err != nil {
		h.logger.Errorf("ACCESS clear on logout user=%s: %v", sr.Username, err)
	}
	h.logger.Printf("AUTH logout user=%s session=%s", sr.Username, utils.ShortDigest(sr.ID))
	clearSessionCookie(w, r, h.cfg)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sr := auth.SessionFrom(r.Context())
	if sr == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       auth.UserDTO{ID: sr.UserID, Username: sr.Username, Role: sr.Role},
		"expires_at": sr.ExpiresAt,
	})
}
