package web

import (
	"bufio"
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mybrain/internal/calendar"
	"mybrain/internal/config"
	"mybrain/internal/dashboard"
	"mybrain/internal/focus"
	appLog "mybrain/internal/log"
	"mybrain/internal/model"
)

const (
	requestIDHeader = "X-Request-ID"

	// focusMaxAge is how stale a focus snapshot may be before /api/focus
	// refreshes it inline.
	focusMaxAge = time.Minute
)

//go:embed templates/*.html
var templateFS embed.FS

// Backend is everything the HTTP layer reads. *dashboard.Service
// implements it.
type Backend interface {
	Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error)
	Current(ctx context.Context, maxAge time.Duration) (dashboard.Snapshot, error)
	Subscribe() (<-chan focus.Candidate, func())
}

type Options struct {
	Config  *config.Config
	Backend Backend

	// Location is the zone calendar days are computed in.
	Location  *time.Location
	WeekStart time.Weekday
	// Clock defaults to time.Now.
	Clock calendar.Clock

	// PreviewPath is the PNG served at /preview.png.
	PreviewPath string
}

// Server serves the calendar page, its JSON API and the focus stream.
type Server struct {
	cfg         *config.Config
	backend     Backend
	loc         *time.Location
	builder     calendar.Builder
	clock       calendar.Clock
	previewPath string

	mux  *http.ServeMux
	tmpl *template.Template

	sessions *sessionStore
}

func NewServer(opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, errors.New("web: backend is required")
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         opts.Config,
		backend:     opts.Backend,
		loc:         opts.Location,
		builder:     calendar.Builder{WeekStart: opts.WeekStart},
		clock:       opts.Clock,
		previewPath: opts.PreviewPath,
		mux:         http.NewServeMux(),
		tmpl:        tmpl,
		sessions:    newSessionStore(opts.Backend),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the routed handler wrapped in request-ID, logging and
// (when configured) basic auth middleware.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return requestIDMiddleware(h)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})

	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.HandleFunc("POST /calendar/intent", s.handleIntent)
	s.mux.HandleFunc("GET /calendar/events/{id}", s.handleEventDetail)
	s.mux.HandleFunc("GET /calendar.ics", s.handleExport)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendarJSON)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)

	s.mux.HandleFunc("GET /api/focus", s.handleFocus)
	s.mux.HandleFunc("GET /ws/focus", s.handleFocusStream)

	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last snapshot PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewPath == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, s.previewPath)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="myBrain", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestIDMiddleware tags every response with X-Request-ID, keeping a
// client-supplied UUID, and logs the request at debug level.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)

		appLog.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status,
			"elapsed", time.Since(started), "request_id", id)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("web: response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
