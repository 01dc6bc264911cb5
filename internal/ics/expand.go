package ics

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"mybrain/internal/calendar"
	appLog "mybrain/internal/log"
	"mybrain/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

type ExpandOptions struct {
	// Location is the display zone; nil means time.Local.
	Location *time.Location

	// Start and End bound the occurrences (inclusive).
	Start time.Time
	End   time.Time

	// MaxOccurrencesPerEvent caps runaway rules; zero means 5000.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds concrete events sorted by start, then ID.
type ExpandResult struct {
	Events []model.CalendarEvent
	// Truncated lists UIDs that hit MaxOccurrencesPerEvent.
	Truncated []string
}

// Expand turns parsed VEVENTs into concrete CalendarEvents within the
// window, applying RRULE, EXDATE and RECURRENCE-ID overrides. Recurring
// instances carry the series UID in OriginalEventID. All-day events get an
// inclusive end on their last day, matching the view's all-day handling.
func Expand(events []ParsedEvent, opts ExpandOptions) (ExpandResult, error) {
	var result ExpandResult

	if opts.End.Before(opts.Start) {
		return result, errors.New("ics: expand window end is before start")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxOccurrencesPerEvent <= 0 {
		opts.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var order []string
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	for _, uid := range order {
		truncated := false
		for _, ev := range bases[uid] {
			var (
				out    []model.CalendarEvent
				hitCap bool
			)
			if ev.RawRRule == "" {
				out = expandSingle(ev, overrides[uid], opts)
			} else {
				out, hitCap = expandRecurring(ev, overrides[uid], opts)
			}
			truncated = truncated || hitCap
			result.Events = append(result.Events, out...)
		}
		if truncated {
			result.Truncated = append(result.Truncated, uid)
			appLog.Warn("ics expansion truncated", "uid", uid, "cap", opts.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		a, b := result.Events[i], result.Events[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})
	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, opts ExpandOptions) []model.CalendarEvent {
	if o, ok := findOverride(overrides, ev.Start); ok {
		ev = o
	}
	if !inWindow(ev, ev.Start, ev.End, opts) {
		return nil
	}
	return []model.CalendarEvent{toCalendarEvent(ev, ev.Start, ev.End, opts.Location)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, opts ExpandOptions) ([]model.CalendarEvent, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: invalid RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	// Widen the lower bound by the event length so instances that started
	// before the window but are still running are kept.
	dur := ev.End.Sub(ev.Start)
	starts := set.Between(opts.Start.Add(-dur).In(loc), opts.End.In(loc), true)

	hitCap := false
	if len(starts) > opts.MaxOccurrencesPerEvent {
		starts = starts[:opts.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.CalendarEvent, 0, len(starts))
	for _, s := range starts {
		inst := ev
		start, end := s, s.Add(dur)
		if o, ok := findOverride(overrides, s); ok {
			inst = o
			start, end = o.Start, o.End
		}
		if !inWindow(inst, start, end, opts) {
			continue
		}
		ce := toCalendarEvent(inst, start, end, opts.Location)
		ce.ID = ev.UID + "/" + s.UTC().Format("20060102T150405Z")
		ce.OriginalEventID = ev.UID
		ce.Recurrence = recurrenceOf(ev.RawRRule)
		out = append(out, ce)
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func toCalendarEvent(ev ParsedEvent, start, end time.Time, loc *time.Location) model.CalendarEvent {
	ce := model.CalendarEvent{
		ID:       ev.UID,
		Title:    ev.Summary,
		Location: ev.Location,
		Color:    ev.Color,
		AllDay:   ev.AllDay,
		SourceID: ev.Feed.ID,
	}
	if ev.AllDay {
		// DATE values carry no zone: keep the calendar day, and turn the
		// exclusive DTEND into the end of the last covered day.
		first := inLocation(start, loc)
		last := inLocation(end, loc)
		if last.After(first) {
			last = last.AddDate(0, 0, -1)
		}
		ce.StartDate = first
		ce.EndDate = calendar.EndOfDay(last)
		return ce
	}
	ce.StartDate = start.In(loc)
	ce.EndDate = end.In(loc)
	return ce
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// recurrenceOf extracts FREQ and INTERVAL from a raw RRULE.
func recurrenceOf(raw string) *model.Recurrence {
	rec := &model.Recurrence{Rule: raw, Interval: 1}
	for _, part := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(k) {
		case "FREQ":
			rec.Frequency = strings.ToLower(v)
		case "INTERVAL":
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				rec.Interval = n
			}
		}
	}
	return rec
}

// inWindow reports whether [start, end] meets the inclusive expand window.
// All-day events are compared by calendar day in opts.Location, with DTEND
// exclusive.
func inWindow(ev ParsedEvent, start, end time.Time, opts ExpandOptions) bool {
	if !ev.AllDay {
		return overlaps(start, end, opts.Start, opts.End)
	}
	first := inLocation(start, opts.Location)
	after := inLocation(end, opts.Location)
	if !after.After(first) {
		after = first.AddDate(0, 0, 1)
	}
	return after.After(opts.Start) && !opts.End.Before(first)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
