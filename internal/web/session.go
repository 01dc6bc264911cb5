package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"mybrain/internal/api"
	"mybrain/internal/calendar"
	"mybrain/internal/model"
)

const (
	sessionCookie = "mybrain_session"
	viewCookie    = "mybrain_view"

	// sessionIdle is how long an unused session's loader is kept.
	sessionIdle = time.Hour
)

type calendarSource interface {
	Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error)
}

// sessionStore keeps one RangeLoader per browser session so a slow load
// for an old view can never overwrite a newer one.
type sessionStore struct {
	src calendarSource

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	loader   *api.RangeLoader
	lastUsed time.Time
}

func newSessionStore(src calendarSource) *sessionStore {
	return &sessionStore{src: src, entries: make(map[string]*sessionEntry)}
}

// loader returns the session's loader, creating it and pruning idle
// sessions as a side effect.
func (st *sessionStore) loader(id string) *api.RangeLoader {
	now := time.Now()

	st.mu.Lock()
	defer st.mu.Unlock()

	for k, e := range st.entries {
		if now.Sub(e.lastUsed) > sessionIdle {
			delete(st.entries, k)
		}
	}
	e, ok := st.entries[id]
	if !ok {
		e = &sessionEntry{loader: api.NewRangeLoader(st.src)}
		st.entries[id] = e
	}
	e.lastUsed = now
	return e.loader
}

// sessionID returns the session cookie value, issuing a new one if needed.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// loadState reads the calendar state cookie, defaulting to month view at now.
func (s *Server) loadState(r *http.Request) calendar.State {
	now := s.now()
	c, err := r.Cookie(viewCookie)
	if err != nil {
		return calendar.DefaultState(now)
	}
	st, err := calendar.DecodeState(c.Value, s.loc)
	if err != nil {
		return calendar.DefaultState(now)
	}
	return st
}

func saveState(w http.ResponseWriter, st calendar.State) {
	http.SetCookie(w, &http.Cookie{
		Name:     viewCookie,
		Value:    st.Encode(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
