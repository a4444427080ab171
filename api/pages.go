package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"storedesk-admin/core/auth"
	"storedesk-admin/core/navigation"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

type pageData struct {
	Title      string
	Path       string
	ActivePath string
	Username   string
	Role       string
	Refreshing bool
	Sections   []navigation.Section
	SafeRoute  string
	RefreshSec int
	Next       string
	Error      string
}

type pageRenderer struct {
	tpl map[string]*template.Template
}

func newPageRenderer() *pageRenderer {
	p := &pageRenderer{tpl: map[string]*template.Template{}}
	for _, name := range []string{"page", "denied", "loading", "notfound", "login"} {
		p.tpl[name] = template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
	}
	return p
}

func (p *pageRenderer) render(w http.ResponseWriter, status int, name string, data pageData) {
	t, ok := p.tpl[name]
	if !ok {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name+".html", data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (p *pageRenderer) renderDenied(w http.ResponseWriter, r *http.Request, safeRoute string) {
	p.render(w, http.StatusForbidden, "denied", pageData{Title: "Permission denied", SafeRoute: safeRoute})
}

func (p *pageRenderer) renderLoading(w http.ResponseWriter, r *http.Request, retryAfter int) {
	if retryAfter <= 0 {
		retryAfter = 1
	}
	p.render(w, http.StatusAccepted, "loading", pageData{Title: "Loading", RefreshSec: retryAfter})
}

func (p *pageRenderer) renderNotFound(w http.ResponseWriter, r *http.Request, safeRoute string) {
	p.render(w, http.StatusNotFound, "notfound", pageData{Title: "Not found", SafeRoute: safeRoute})
}

// page renders the shell of a navigation route with the sidebar filtered to
// what the session may read.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	g := guardFrom(r.Context())
	sr := auth.SessionFrom(r.Context())
	if g == nil || sr == nil {
		s.unauthorized(w, r)
		return
	}
	declared, _, ok := s.navMap.Match(r.URL.Path)
	if !ok {
		s.pages.renderNotFound(w, r, s.cfg.Access.SafeRoute)
		return
	}
	item, _ := s.itemFor(declared)
	status := g.store.Status()
	s.pages.render(w, http.StatusOK, "page", pageData{
		Title:      item.Label,
		Path:       navigation.NormalizePath(r.URL.Path),
		ActivePath: declared,
		Username:   sr.Username,
		Role:       status.Role,
		Refreshing: status.Refreshing,
		Sections:   s.nav.VisibleSections(g.store.CanRead),
	})
}

func (s *Server) itemFor(path string) (navigation.Item, bool) {
	for it := range s.nav.AllItems() {
		if it.Path == path {
			return it, true
		}
	}
	return navigation.Item{}, false
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	next := s.safeNext(r.URL.Query().Get("next"))
	if token := s.sessionToken(r); token != "" {
		if sr, err := s.sessionManager.Resolve(r.Context(), token); err == nil && sr != nil {
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
	}
	s.pages.render(w, http.StatusOK, "login", pageData{Title: "Sign in", Next: next})
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	next := s.safeNext(r.PostFormValue("next"))
	cred := auth.Credentials{
		Username: strings.ToLower(strings.TrimSpace(r.PostFormValue("username"))),
		Password: r.PostFormValue("password"),
	}
	res, err := s.sessionManager.Login(r.Context(), cred, s.clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrInactiveUser) {
			s.logger.Printf("AUTH login failed user=%s ip=%s", cred.Username, s.clientIP(r))
			s.pages.render(w, http.StatusUnauthorized, "login", pageData{Title: "Sign in", Next: next, Error: "Invalid username or password"})
			return
		}
		s.logger.Errorf("AUTH login: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.setSessionCookie(w, r, res.Token, res.ExpiresAt)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) logoutSubmit(w http.ResponseWriter, r *http.Request) {
	sr := auth.SessionFrom(r.Context())
	if sr != nil {
		if err := s.sessionManager.Logout(r.Context(), sr.ID); err != nil {
			s.logger.Errorf("AUTH logout: %v", err)
		}
		if err := s.registry.Clear(r.Context(), sr.ID); err != nil {
			s.logger.Errorf("ACCESS clear on logout: %v", err)
		}
	}
	s.clearSessionCookie(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// safeNext only accepts same-origin absolute paths.
func (s *Server) safeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return s.cfg.Access.SafeRoute
	}
	if strings.HasPrefix(raw, "/login") {
		return s.cfg.Access.SafeRoute
	}
	return raw
}
