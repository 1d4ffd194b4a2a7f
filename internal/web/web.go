// Package web serves the browser pages for the PDF tools. Each page posts
// its form to the matching /api endpoint and downloads the response.
package web

import (
	"crypto/subtle"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionCookie = "pdftools_session"

	DefaultSessionTTL = 12 * time.Hour
)

type Web struct {
	tpl        *template.Template
	username   string
	password   string
	sessionTTL time.Duration
	secure     bool
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]time.Time // token -> expiry
}

// Options configures the pages. Auth is enabled when both Username and
// Password are set.
type Options struct {
	TemplateDir string
	Username    string
	Password    string
	SessionTTL  time.Duration
	// SecureCookie marks the session cookie HTTPS-only.
	SecureCookie bool
}

func New(opts Options) (*Web, error) {
	if opts.TemplateDir == "" {
		opts.TemplateDir = filepath.Join("web", "templates")
	}
	tpl, err := template.ParseGlob(filepath.Join(opts.TemplateDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("parse templates in %s: %w", opts.TemplateDir, err)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	return &Web{
		tpl:        tpl,
		username:   opts.Username,
		password:   opts.Password,
		sessionTTL: opts.SessionTTL,
		secure:     opts.SecureCookie,
		now:        time.Now,
		sessions:   make(map[string]time.Time),
	}, nil
}

func (w *Web) authEnabled() bool { return w.username != "" && w.password != "" }

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", w.handleLoginPage)
	mux.HandleFunc("POST /login", w.handleLogin)
	mux.HandleFunc("POST /logout", w.handleLogout)
	mux.HandleFunc("GET /{$}", w.requireAuth(w.handleIndex))
	mux.HandleFunc("GET /tools/{tool}", w.requireAuth(w.handleTool))
}

func (w *Web) render(wr http.ResponseWriter, status int, name string, data any) {
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	wr.WriteHeader(status)
	if err := w.tpl.ExecuteTemplate(wr, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render page")
	}
}

func (w *Web) loggedIn(r *http.Request) bool {
	if !w.authEnabled() {
		return true
	}
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	w.mu.RLock()
	expires, ok := w.sessions[c.Value]
	w.mu.RUnlock()
	if !ok {
		return false
	}
	if !w.now().Before(expires) {
		w.mu.Lock()
		delete(w.sessions, c.Value)
		w.mu.Unlock()
		return false
	}
	return true
}

// PruneSessions drops expired sessions and returns how many were removed.
func (w *Web) PruneSessions() int {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for token, expires := range w.sessions {
		if !now.Before(expires) {
			delete(w.sessions, token)
			n++
		}
	}
	return n
}

func (w *Web) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if !w.loggedIn(r) {
			http.Redirect(wr, r, "/login", http.StatusSeeOther)
			return
		}
		next(wr, r)
	}
}

// Protect guards API handlers with the page session. Unauthenticated API
// calls get a JSON 401 instead of a redirect.
func (w *Web) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		if !w.loggedIn(r) {
			wr.Header().Set("Content-Type", "application/json")
			wr.WriteHeader(http.StatusUnauthorized)
			_, _ = wr.Write([]byte(`{"error":"login required"}` + "\n"))
			return
		}
		next.ServeHTTP(wr, r)
	})
}

func (w *Web) handleLoginPage(wr http.ResponseWriter, r *http.Request) {
	if !w.authEnabled() {
		http.Redirect(wr, r, "/", http.StatusSeeOther)
		return
	}
	w.render(wr, http.StatusOK, "login.html", map[string]any{"Error": r.URL.Query().Get("error")})
}

func (w *Web) handleLogin(wr http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(wr, r, "/login?error=invalid+form", http.StatusSeeOther)
		return
	}
	user := []byte(r.Form.Get("username"))
	pass := []byte(r.Form.Get("password"))
	if !w.authEnabled() ||
		subtle.ConstantTimeCompare(user, []byte(w.username)) != 1 ||
		subtle.ConstantTimeCompare(pass, []byte(w.password)) != 1 {
		log.Warn().Str("user", string(user)).Msg("failed login")
		http.Redirect(wr, r, "/login?error=invalid+credentials", http.StatusSeeOther)
		return
	}
	token := uuid.NewString()
	w.mu.Lock()
	w.sessions[token] = w.now().Add(w.sessionTTL)
	w.mu.Unlock()
	http.SetCookie(wr, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(w.sessionTTL / time.Second),
		Secure:   w.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(wr, r, "/", http.StatusSeeOther)
}

func (w *Web) handleLogout(wr http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		w.mu.Lock()
		delete(w.sessions, c.Value)
		w.mu.Unlock()
	}
	http.SetCookie(wr, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, Secure: w.secure, HttpOnly: true})
	http.Redirect(wr, r, "/login", http.StatusSeeOther)
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
	w.render(wr, http.StatusOK, "index.html", map[string]any{
		"Tools":  Tools,
		"Logout": w.authEnabled(),
	})
}

func (w *Web) handleTool(wr http.ResponseWriter, r *http.Request) {
	t, ok := Lookup(r.PathValue("tool"))
	if !ok {
		w.render(wr, http.StatusNotFound, "index.html", map[string]any{
			"Tools":  Tools,
			"Logout": w.authEnabled(),
			"Error":  "Unknown tool " + r.PathValue("tool"),
		})
		return
	}
	w.render(wr, http.StatusOK, "tool.html", map[string]any{
		"Tool":   t,
		"Tools":  Tools,
		"Logout": w.authEnabled(),
	})
}
