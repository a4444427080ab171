package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"storedesk-admin/core/access"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/rbac"
	"storedesk-admin/core/store"
)

type guardKey struct{}

type guardResult struct {
	store *access.Store
	req   access.Requirement
}

func guardFrom(ctx context.Context) *guardResult {
	g, _ := ctx.Value(guardKey{}).(*guardResult)
	return g
}

// requireTab guards a route on read access to an explicit tab key.
func (s *Server) requireTab(key string) func(http.Handler) http.Handler {
	return s.requireTabAction(key, rbac.ActionRead)
}

func (s *Server) requireTabAction(key string, action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sr, st := s.permissionStore(r)
			if st == nil {
				s.unauthorized(w, r)
				return
			}
			d := access.DecideAction(st, key, action)
			req := access.Requirement{Path: r.URL.Path, Key: key}
			s.applyDecision(w, r, next, sr, st, d, req, action)
		})
	}
}

// guardByPath resolves the tab key from the request path.
func (s *Server) guardByPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr, st := s.permissionStore(r)
		if st == nil {
			s.unauthorized(w, r)
			return
		}
		d, req := s.paths.DecidePath(st, r.URL.Path)
		s.applyDecision(w, r, next, sr, st, d, req, rbac.ActionRead)
	})
}

// permissionStore returns the session's store after waiting a bounded time
// for it to be fresh. A wait that times out is not an error here: the
// decision reports loading instead.
func (s *Server) permissionStore(r *http.Request) (*store.SessionRecord, *access.Store) {
	sr := auth.SessionFrom(r.Context())
	if sr == nil {
		return nil, nil
	}
	st := s.registry.ForSession(r.Context(), sr.ID)
	if err := st.InitializeWithin(r.Context(), s.cfg.Guard.WaitTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Debugf("GUARD initialize %s user=%s: %v", r.URL.Path, sr.Username, err)
	}
	return sr, st
}

func (s *Server) applyDecision(w http.ResponseWriter, r *http.Request, next http.Handler, sr *store.SessionRecord, st *access.Store, d access.Decision, req access.Requirement, action rbac.Action) {
	s.registry.Stats().RecordDecision(d)
	switch d {
	case access.DecisionAllowed:
		ctx := context.WithValue(r.Context(), guardKey{}, &guardResult{store: st, req: req})
		next.ServeHTTP(w, r.WithContext(ctx))
	case access.DecisionLoading:
		w.Header().Set("Retry-After", strconv.Itoa(s.cfg.Guard.RetryAfter))
		if wantsJSON(r) {
			w.Header().Set("Content-Type", "application/json")
			writeJSON(w, http.StatusAccepted, map[string]any{"state": access.StateLoading, "retry_after": s.cfg.Guard.RetryAfter})
			return
		}
		s.pages.renderLoading(w, r, s.cfg.Guard.RetryAfter)
	default:
		need := req.Key
		if need == "" {
			need = "(unmapped)"
		}
		s.logger.Printf("GUARD deny %s %s user=%s role=%s need=%s:%s state=%s", r.Method, r.URL.Path, sr.Username, st.Role(), need, action, st.State())
		if wantsJSON(r) {
			w.Header().Set("Content-Type", "application/json")
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden", "tab": req.Key, "action": action})
			return
		}
		s.pages.renderDenied(w, r, s.cfg.Access.SafeRoute)
	}
}
