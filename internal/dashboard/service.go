// Package dashboard gathers events, tasks and messages from every configured
// source and keeps the latest focus candidate for the UI.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mybrain/internal/calendar"
	"mybrain/internal/focus"
	appLog "mybrain/internal/log"
	"mybrain/internal/model"
)

// UpcomingDays is how far ahead Refresh looks for upcoming events.
const UpcomingDays = 7

// maxUpcoming caps DashboardData.Upcoming.
const maxUpcoming = 5

// ErrNoSources is returned by Refresh when every source failed.
var ErrNoSources = errors.New("dashboard: no source answered")

type EventSource interface {
	Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error)
}

type TaskSource interface {
	Tasks(ctx context.Context, now time.Time) (model.TaskSummary, error)
}

// TaskSourceFunc adapts a plain function to TaskSource.
type TaskSourceFunc func(ctx context.Context, now time.Time) (model.TaskSummary, error)

func (f TaskSourceFunc) Tasks(ctx context.Context, now time.Time) (model.TaskSummary, error) {
	return f(ctx, now)
}

type MessageSource interface {
	Messages(ctx context.Context) (model.MessageSummary, error)
}

// Sources lists the backends a Service reads from. Any of them may be
// empty; Messages may be nil.
type Sources struct {
	Events   []EventSource
	Tasks    []TaskSource
	Messages MessageSource
}

// Snapshot is the result of one refresh.
type Snapshot struct {
	Data      model.DashboardData `json:"data"`
	Focus     focus.Candidate     `json:"focus"`
	UpdatedAt time.Time           `json:"updatedAt"`
	// Partial is set when at least one source failed.
	Partial bool `json:"partial,omitempty"`
}

type Service struct {
	src   Sources
	clock calendar.Clock
	loc   *time.Location

	// refreshMu serializes Refresh; the snapshot stored last is the newest.
	refreshMu sync.Mutex

	mu     sync.RWMutex
	latest Snapshot
	loaded bool

	subMu sync.Mutex
	subs  map[chan focus.Candidate]struct{}
}

// New creates a Service. A nil clock uses time.Now; a nil loc uses
// time.Local.
func New(src Sources, clock calendar.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		src:   src,
		clock: clock,
		loc:   loc,
		subs:  make(map[chan focus.Candidate]struct{}),
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Refresh queries every source concurrently and stores a new snapshot.
// Sources that fail are logged and left out. If none answered, the
// previous snapshot is kept and ErrNoSources is returned.
// Concurrent calls run one after another.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	now := s.now()
	today := calendar.StartOfDay(now)

	var (
		mu       sync.Mutex
		errs     []error
		answered int
		events   []model.CalendarEvent
		tasks    []model.TaskSummary
		msgs     model.MessageSummary
	)
	// A source that returned partial data still counts as answered.
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		answered++
	}
	fail := func(name string, err error) {
		appLog.Error("dashboard source failed", err, "source", name)
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		mu.Unlock()
	}

	var g errgroup.Group
	for i, src := range s.src.Events {
		name := fmt.Sprintf("events[%d]", i)
		g.Go(func() error {
			evs, err := src.Events(ctx, today, today.AddDate(0, 0, UpcomingDays))
			if err != nil && len(evs) == 0 {
				fail(name, err)
				return nil
			}
			if err != nil {
				appLog.Warn("dashboard source partial", "source", name, "reason", err)
			}
			record(name, err)
			mu.Lock()
			events = append(events, evs...)
			mu.Unlock()
			return nil
		})
	}
	for i, src := range s.src.Tasks {
		name := fmt.Sprintf("tasks[%d]", i)
		g.Go(func() error {
			sum, err := src.Tasks(ctx, now)
			if err != nil && isEmpty(sum) {
				fail(name, err)
				return nil
			}
			record(name, err)
			mu.Lock()
			tasks = append(tasks, sum)
			mu.Unlock()
			return nil
		})
	}
	if s.src.Messages != nil {
		g.Go(func() error {
			m, err := s.src.Messages.Messages(ctx)
			if err != nil {
				fail("messages", err)
				return nil
			}
			record("messages", nil)
			mu.Lock()
			msgs = m
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	total := len(s.src.Events) + len(s.src.Tasks)
	if s.src.Messages != nil {
		total++
	}
	if total > 0 && answered == 0 {
		return s.Latest(), errors.Join(ErrNoSources, err)
	}

	data := assemble(now, events, tasks, msgs)
	snap := Snapshot{
		Data:      data,
		Focus:     focus.Select(data),
		UpdatedAt: now,
		Partial:   err != nil,
	}

	s.mu.Lock()
	prev, hadPrev := s.latest.Focus, s.loaded
	s.latest = snap
	s.loaded = true
	s.mu.Unlock()

	if !hadPrev || prev != snap.Focus {
		s.publish(snap.Focus)
	}
	appLog.Info("dashboard refreshed",
		"events", len(data.Events), "overdue", len(data.OverdueTasks), "unread", data.UnreadCount,
		"focus", string(snap.Focus.Kind), "partial", snap.Partial)
	return snap, err
}

// Latest returns the most recent snapshot (zero if Refresh never succeeded).
func (s *Service) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Current returns the latest snapshot, refreshing first when it is older
// than maxAge or missing.
func (s *Service) Current(ctx context.Context, maxAge time.Duration) (Snapshot, error) {
	s.mu.RLock()
	snap, loaded := s.latest, s.loaded
	s.mu.RUnlock()

	if loaded && s.now().Sub(snap.UpdatedAt) < maxAge {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Events merges every event source over [start, end). It implements
// api.EventSource so the calendar view can load through a RangeLoader.
func (s *Service) Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	if len(s.src.Events) == 0 {
		return nil, nil
	}

	results := make([][]model.CalendarEvent, len(s.src.Events))
	errs := make([]error, len(s.src.Events))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.src.Events {
		g.Go(func() error {
			results[i], errs[i] = src.Events(gctx, start, end)
			return nil
		})
	}
	_ = g.Wait()

	var (
		out []model.CalendarEvent
		ok  bool
	)
	for i := range results {
		if errs[i] != nil {
			appLog.Warn("event source failed", "source", i, "reason", errs[i])
		}
		if errs[i] == nil || len(results[i]) > 0 {
			ok = true
		}
		out = append(out, results[i]...)
	}
	err := errors.Join(errs...)
	if !ok {
		return nil, err
	}
	sortEvents(out)
	return out, err
}

// Subscribe returns a channel that receives each new focus candidate and a
// cancel func that must be called when the caller is done. Slow readers
// only ever see the newest candidate.
func (s *Service) Subscribe() (<-chan focus.Candidate, func()) {
	ch := make(chan focus.Candidate, 1)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Service) publish(c focus.Candidate) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		// Drop a pending, now stale value before sending.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c:
		default:
		}
	}
}

func assemble(now time.Time, events []model.CalendarEvent, tasks []model.TaskSummary, msgs model.MessageSummary) model.DashboardData {
	sortEvents(events)

	d := model.DashboardData{
		Now:           now,
		UnreadCount:   msgs.UnreadCount,
		Conversations: msgs.Conversations,
	}
	endOfToday := calendar.EndOfDay(now)
	for _, ev := range events {
		switch {
		case calendar.Touches(ev, now):
			d.Events = append(d.Events, ev)
		case ev.StartDate.After(endOfToday) && len(d.Upcoming) < maxUpcoming:
			d.Upcoming = append(d.Upcoming, ev)
		}
	}

	for _, t := range tasks {
		d.OverdueTasks = append(d.OverdueTasks, t.Overdue...)
		d.TodayTasks = append(d.TodayTasks, t.DueToday...)
		d.CompletedToday += t.CompletedToday
	}
	sort.SliceStable(d.OverdueTasks, func(i, j int) bool {
		a, b := d.OverdueTasks[i].DueDate, d.OverdueTasks[j].DueDate
		if a == nil || b == nil {
			return a != nil
		}
		return a.Before(*b)
	})
	return d
}

// sortEvents orders by start, then ID.
func sortEvents(events []model.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartDate.Equal(events[j].StartDate) {
			return events[i].StartDate.Before(events[j].StartDate)
		}
		return events[i].ID < events[j].ID
	})
}

func isEmpty(s model.TaskSummary) bool {
	return len(s.Overdue) == 0 && len(s.DueToday) == 0 && s.CompletedToday == 0
}
