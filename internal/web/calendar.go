package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mybrain/internal/api"
	"mybrain/internal/calendar"
	"mybrain/internal/ics"
	appLog "mybrain/internal/log"
	"mybrain/internal/model"
)

// maxEventsSpan bounds /api/events ranges.
const maxEventsSpan = 366 * 24 * time.Hour

const exportName = "myBrain"

// pageData is what the calendar template renders.
type pageData struct {
	Page  calendar.Page
	State calendar.State
	Now   time.Time
}

// handleCalendarPage renders the calendar. A ?date= deep link is consumed
// once: it becomes the stored day-view state and the browser is sent back
// to the same URL without the parameter, so reloads and back navigation
// do not re-apply it.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	if _, present := r.URL.Query()[calendar.DateParam]; present {
		st, rest, ok := calendar.ConsumeDateParam(r.URL.Query(), s.loc)
		if ok {
			saveState(w, st)
		} else {
			appLog.Warn("ignoring invalid date parameter", "value", r.URL.Query().Get(calendar.DateParam))
		}
		target := url.URL{Path: r.URL.Path, RawQuery: rest.Encode()}
		http.Redirect(w, r, target.String(), http.StatusSeeOther)
		return
	}

	page, st, err := s.buildPage(w, r, s.loadState(r))
	if errors.Is(err, api.ErrSuperseded) {
		http.Error(w, "superseded by a newer request", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "calendar.html", pageData{Page: page, State: st, Now: s.now()}); err != nil {
		appLog.Error("calendar template failed", err)
	}
}

// handleCalendarJSON is the JSON twin of the page. view and date query
// parameters override the stored state without changing it.
func (s *Server) handleCalendarJSON(w http.ResponseWriter, r *http.Request) {
	st := s.loadState(r)
	q := r.URL.Query()
	if v := q.Get("view"); v != "" {
		st.View = calendar.ParseView(v)
	}
	if d := q.Get(calendar.DateParam); d != "" {
		ref, err := calendar.ParseDateParam(d, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		st.Ref = ref
	}

	page, _, err := s.buildPage(w, r, st)
	if errors.Is(err, api.ErrSuperseded) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// buildPage loads the state's visible range through the session's loader.
// Upstream failures never fail the page: they render an empty (or partial)
// grid with LoadError set. Only ErrSuperseded is returned.
func (s *Server) buildPage(w http.ResponseWriter, r *http.Request, st calendar.State) (calendar.Page, calendar.State, error) {
	now := s.now()
	st.View = calendar.ParseView(string(st.View))
	if st.Ref.IsZero() {
		st.Ref = calendar.Noon(now)
	}

	rng := s.builder.RangeFor(st.View, st.Ref)
	loader := s.sessions.loader(sessionID(w, r))
	events, err := loader.Load(r.Context(), rng)
	if errors.Is(err, api.ErrSuperseded) {
		return calendar.Page{}, st, err
	}
	if err != nil {
		appLog.Error("calendar load failed", err, "view", string(st.View), "start", calendar.DayKey(rng.Start))
	}

	page := s.builder.BuildPage(st, events, now)
	page.LoadError = err != nil
	return page, st, nil
}

// handleIntent applies one calendar intent to the stored state. Browsers
// are redirected (to the event for open-event, else back to the page);
// JSON clients get the new state and effect.
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	in, err := calendar.ParseIntent(r.PostForm, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, effect := calendar.Apply(s.loadState(r), in, s.now())
	saveState(w, st)
	appLog.Debug("calendar intent", "kind", string(in.Kind), "view", string(st.View), "ref", calendar.DayKey(st.Ref))

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		type intentResponse struct {
			View   calendar.View   `json:"view"`
			Date   string          `json:"date"`
			Effect calendar.Effect `json:"effect"`
		}
		writeJSON(w, http.StatusOK, intentResponse{View: st.View, Date: calendar.FormatDateParam(st.Ref), Effect: effect})
		return
	}

	target := "/calendar"
	if effect.Kind == calendar.EffectOpenEvent {
		target = effect.Link
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type eventDetail struct {
	ID          string                `json:"id"`
	Event       model.CalendarEvent   `json:"event"`
	Occurrences []model.CalendarEvent `json:"occurrences"`
	LoadError   bool                  `json:"loadError,omitempty"`
}

// handleEventDetail is the target of the open-event effect. id is an event
// or series ID; it is looked up in the stored state's visible range, where
// the click came from. Every occurrence of a series in that range is listed.
func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st := s.loadState(r)
	rng := s.builder.RangeFor(st.View, st.Ref)

	events, err := s.backend.Events(r.Context(), rng.Start, rng.End)
	if err != nil {
		appLog.Error("event detail load failed", err, "id", id)
	}
	var matches []model.CalendarEvent
	for _, ev := range events {
		if ev.ID == id || ev.SeriesID() == id {
			matches = append(matches, ev)
		}
	}
	if len(matches) == 0 {
		if err != nil {
			writeError(w, http.StatusBadGateway, "events unavailable")
			return
		}
		writeError(w, http.StatusNotFound, "event not found in the current view")
		return
	}

	detail := eventDetail{ID: id, Event: matches[0], Occurrences: matches, LoadError: err != nil}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, detail)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "event.html", detail); err != nil {
		appLog.Error("event template failed", err)
	}
}

type eventsResponse struct {
	Events    []model.CalendarEvent `json:"events"`
	Range     calendar.Range        `json:"range"`
	Timezone  string                `json:"timezone"`
	LoadError bool                  `json:"loadError,omitempty"`
}

// handleEvents returns merged events in [start, end). Both bounds accept
// YYYY-MM-DD (local midnight) or RFC 3339; the default is the current
// month's visible range.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng := s.builder.RangeFor(calendar.ViewMonth, s.now())

	if v := q.Get("start"); v != "" {
		t, err := s.parseBound(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rng.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := s.parseBound(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rng.End = t
	}
	if !rng.End.After(rng.Start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}
	if rng.End.Sub(rng.Start) > maxEventsSpan {
		writeError(w, http.StatusBadRequest, "range is longer than a year")
		return
	}

	events, err := s.backend.Events(r.Context(), rng.Start, rng.End)
	if err != nil {
		appLog.Error("api events failed", err, "start", rng.Start.Format(time.RFC3339), "end", rng.End.Format(time.RFC3339))
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:    events,
		Range:     rng,
		Timezone:  s.loc.String(),
		LoadError: err != nil,
	})
}

func (s *Server) parseBound(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(s.loc), nil
	}
	t, err := calendar.ParseDateParam(v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid bound %q: want YYYY-MM-DD or RFC 3339", v)
	}
	return calendar.StartOfDay(t), nil
}

// handleExport serves the visible range (stored state, or view/date query
// overrides) as an iCalendar file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st := s.loadState(r)
	q := r.URL.Query()
	if v := q.Get("view"); v != "" {
		st.View = calendar.ParseView(v)
	}
	if d := q.Get(calendar.DateParam); d != "" {
		ref, err := calendar.ParseDateParam(d, s.loc)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		st.Ref = ref
	}

	rng := s.builder.RangeFor(st.View, st.Ref)
	events, err := s.backend.Events(r.Context(), rng.Start, rng.End)
	if err != nil && len(events) == 0 {
		appLog.Error("calendar export failed", err)
		http.Error(w, "events unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	_, _ = w.Write([]byte(ics.Export(exportName, events, s.now())))
}
