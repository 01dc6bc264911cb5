package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mybrain/internal/calendar"
	"mybrain/internal/config"
	"mybrain/internal/dashboard"
	"mybrain/internal/focus"
	"mybrain/internal/model"
	"mybrain/internal/web"
)

var fixedNow = time.Date(2024, time.July, 3, 10, 0, 0, 0, time.UTC)

type fakeEvents struct {
	mu     sync.Mutex
	events []model.CalendarEvent
	err    error
}

func (f *fakeEvents) Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.CalendarEvent
	for _, ev := range f.events {
		if ev.StartDate.Before(end) && !ev.EndDate.Before(start) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEvents) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func defaultEvents() []model.CalendarEvent {
	return []model.CalendarEvent{
		{ID: "standup", Title: "Standup", StartDate: time.Date(2024, time.July, 3, 9, 30, 0, 0, time.UTC), EndDate: time.Date(2024, time.July, 3, 10, 30, 0, 0, time.UTC)},
		{ID: "gym/1", Title: "Gym", OriginalEventID: "gym", StartDate: time.Date(2024, time.July, 5, 7, 0, 0, 0, time.UTC), EndDate: time.Date(2024, time.July, 5, 7, 10, 0, 0, time.UTC)},
		{ID: "trip", Title: "Trip", AllDay: true, StartDate: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, time.July, 2, 23, 59, 59, 0, time.UTC)},
	}
}

type testEnv struct {
	srv    *httptest.Server
	src    *fakeEvents
	client *http.Client
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *web.Options)) *testEnv {
	t.Helper()
	src := &fakeEvents{events: defaultEvents()}
	clock := calendar.Clock(func() time.Time { return fixedNow })
	svc := dashboard.New(dashboard.Sources{Events: []dashboard.EventSource{src}}, clock, time.UTC)

	cfg := config.DefaultConfig()
	opts := web.Options{Config: cfg, Backend: svc, Location: time.UTC, Clock: clock}
	if mutate != nil {
		mutate(cfg, &opts)
	}
	s, err := web.NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{srv: srv, src: src, client: client}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) postIntent(t *testing.T, form url.Values, asJSON bool) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/calendar/intent", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("POST intent: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) setView(t *testing.T, state string) {
	t.Helper()
	u, _ := url.Parse(e.srv.URL)
	e.client.Jar.SetCookies(u, []*http.Cookie{{Name: "mybrain_view", Value: state, Path: "/"}})
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestHealthAndBasicAuth(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *web.Options) {
		cfg.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "pw"}
	})

	resp := env.get(t, "/health")
	if resp.StatusCode != http.StatusOK || body(t, resp) != "OK" {
		t.Errorf("/health = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	if resp := env.get(t, "/calendar"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("/calendar without credentials = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/focus", nil)
	req.SetBasicAuth("me", "pw")
	req.Header.Set("X-Request-ID", "0f8fad5b-d9cb-469f-a165-70867728950e")
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/api/focus with credentials = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "0f8fad5b-d9cb-469f-a165-70867728950e" {
		t.Errorf("request id not echoed: %q", got)
	}
}

func TestDateParamIsConsumed(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/calendar?date=2024-07-05&theme=dark")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/calendar?theme=dark" {
		t.Errorf("redirect = %q", loc)
	}

	resp = env.get(t, "/calendar")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("page status = %d", resp.StatusCode)
	}
	page := body(t, resp)
	if !strings.Contains(page, "Friday, July 5, 2024") || !strings.Contains(page, `data-view="day"`) {
		t.Error("day view for the deep-linked date not rendered")
	}
	if !strings.Contains(page, "Gym") || !strings.Contains(page, `data-ready="true"`) {
		t.Error("page missing event or ready marker")
	}

	// Reloading keeps the state; the parameter is gone for good.
	resp = env.get(t, "/api/calendar")
	var p calendar.Page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.View != calendar.ViewDay || calendar.DayKey(p.Reference) != "2024-07-05" {
		t.Errorf("stored state = %s %s", p.View, calendar.DayKey(p.Reference))
	}
}

func TestInvalidDateParamIsDropped(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/calendar?date=not-a-date")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/calendar" {
		t.Fatalf("status %d location %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp = env.get(t, "/calendar")
	if page := body(t, resp); !strings.Contains(page, "July 2024") || !strings.Contains(page, `data-view="month"`) {
		t.Error("invalid date should fall back to the default month view")
	}
}

func TestCalendarJSONWeekView(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/api/calendar?view=week&date=2024-07-03")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var p calendar.Page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Title != "Jun 30 - Jul 6, 2024" || len(p.Days) != 7 || len(p.Hours) != 24 {
		t.Fatalf("page = %q, %d days, %d hours", p.Title, len(p.Days), len(p.Hours))
	}
	friday := p.Days[5]
	if len(friday.Timed) != 1 || friday.Timed[0].Placement == nil {
		t.Fatalf("friday = %+v", friday)
	}
	if pl := friday.Timed[0].Placement; pl.Top != 420 || pl.Height != calendar.WeekMinHeight {
		t.Errorf("gym placement = %+v", pl)
	}
	if len(p.Days[1].AllDay) != 1 || len(p.Days[2].AllDay) != 1 || len(p.Days[3].AllDay) != 0 {
		t.Error("trip should cover Jul 1 and Jul 2 only")
	}
}

func TestUpstreamFailureRendersEmptyGrid(t *testing.T) {
	env := newTestEnv(t, nil)
	env.src.fail(errors.New("upstream down"))

	resp := env.get(t, "/api/calendar")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var p calendar.Page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if !p.LoadError || len(p.Days) != 42 {
		t.Errorf("loadError=%v days=%d", p.LoadError, len(p.Days))
	}

	resp = env.get(t, "/api/events?start=2024-07-01&end=2024-07-08")
	var er struct {
		Events    []model.CalendarEvent `json:"events"`
		LoadError bool                  `json:"loadError"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || !er.LoadError || er.Events == nil || len(er.Events) != 0 {
		t.Errorf("events = %d %+v", resp.StatusCode, er)
	}
}

func TestIntents(t *testing.T) {
	env := newTestEnv(t, nil)

	env.setView(t, "month:2024-01-31")
	resp := env.postIntent(t, url.Values{"kind": {"next"}}, true)
	var got struct {
		View   string          `json:"view"`
		Date   string          `json:"date"`
		Effect calendar.Effect `json:"effect"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.View != "month" || got.Date != "2024-02-29" {
		t.Errorf("next from Jan 31 = %s %s", got.View, got.Date)
	}

	resp = env.postIntent(t, url.Values{"kind": {"select-day"}, "date": {"2024-02-10"}}, false)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/calendar" {
		t.Errorf("select-day = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp = env.get(t, "/api/calendar")
	var p calendar.Page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.View != calendar.ViewDay || calendar.DayKey(p.Reference) != "2024-02-10" {
		t.Errorf("after select-day = %s %s", p.View, calendar.DayKey(p.Reference))
	}

	resp = env.postIntent(t, url.Values{"kind": {"open-event"}, "event_id": {"gym/1"}, "original_event_id": {"gym"}}, false)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/calendar/events/gym" {
		t.Errorf("open-event = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	if resp := env.postIntent(t, url.Values{"kind": {"explode"}}, false); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown intent = %d", resp.StatusCode)
	}
}

func TestOpenEventTargetIsServed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.setView(t, "week:2024-07-03")

	resp := env.postIntent(t, url.Values{"kind": {"open-event"}, "event_id": {"gym/1"}, "original_event_id": {"gym"}}, false)
	target := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusSeeOther || target == "" {
		t.Fatalf("open-event = %d %q", resp.StatusCode, target)
	}

	resp = env.get(t, target)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s = %d", target, resp.StatusCode)
	}
	if page := body(t, resp); !strings.Contains(page, "Gym") || !strings.Contains(page, `data-event="gym"`) {
		t.Error("event detail page missing the event")
	}

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/calendar/events/standup", nil)
	req.Header.Set("Accept", "application/json")
	jr, err := env.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer jr.Body.Close()
	var detail struct {
		Event       model.CalendarEvent   `json:"event"`
		Occurrences []model.CalendarEvent `json:"occurrences"`
	}
	if err := json.NewDecoder(jr.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	if detail.Event.Title != "Standup" || len(detail.Occurrences) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	if resp := env.get(t, "/calendar/events/nope"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown event = %d", resp.StatusCode)
	}
}

func TestEventsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/api/events?start=2024-07-03&end=2024-07-04")
	var er struct {
		Events []model.CalendarEvent `json:"events"`
		Range  calendar.Range        `json:"range"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatal(err)
	}
	if len(er.Events) != 1 || er.Events[0].ID != "standup" {
		t.Errorf("events = %+v", er.Events)
	}

	for _, q := range []string{"start=2024-07-04&end=2024-07-03", "start=yesterday", "start=2020-01-01&end=2024-01-01"} {
		if resp := env.get(t, "/api/events?"+q); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/calendar.ics?view=week&date=2024-07-03")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type %q", ct)
	}
	doc := body(t, resp)
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Standup", "SUMMARY:Gym", "RELATED-TO:gym"} {
		if !strings.Contains(doc, want) {
			t.Errorf("export missing %q", want)
		}
	}
}

func TestFocusEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/api/focus")
	var fr struct {
		Focus focus.Candidate `json:"focus"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		t.Fatal(err)
	}
	if fr.Focus.Kind != focus.KindEventNow || fr.Focus.Title != "Standup" {
		t.Errorf("focus = %+v", fr.Focus)
	}

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws/focus"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var c focus.Candidate
	if err := conn.ReadJSON(&c); err != nil {
		t.Fatalf("read: %v", err)
	}
	if c.Kind != focus.KindEventNow {
		t.Errorf("pushed focus = %+v", c)
	}
}

func TestPreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, func(_ *config.Config, o *web.Options) { o.PreviewPath = path })

	resp := env.get(t, "/preview.png")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("preview = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	missing := newTestEnv(t, nil)
	if resp := missing.get(t, "/preview.png"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("no preview configured = %d", resp.StatusCode)
	}
}
