package calendar

import (
	"strings"
	"time"
)

// View is the calendar view mode.
type View string

const (
	ViewMonth View = "month"
	ViewWeek  View = "week"
	ViewDay   View = "day"
)

// ParseView maps a query or form value to a View; anything unknown is month.
func ParseView(s string) View {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case ViewWeek:
		return ViewWeek
	case ViewDay:
		return ViewDay
	default:
		return ViewMonth
	}
}

// Clock returns the current time. A nil Clock means time.Now.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Next moves ref forward by one view unit.
func Next(view View, ref time.Time) time.Time {
	return step(view, ref, 1)
}

// Previous moves ref back by one view unit.
func Previous(view View, ref time.Time) time.Time {
	return step(view, ref, -1)
}

// Today is the "jump to today" transition.
func Today(clock Clock) time.Time {
	return clock.Now()
}

func step(view View, ref time.Time, dir int) time.Time {
	switch view {
	case ViewWeek:
		return ref.AddDate(0, 0, 7*dir)
	case ViewDay:
		return ref.AddDate(0, 0, dir)
	default:
		return addMonthsClamped(ref, dir)
	}
}

// addMonthsClamped adds n months keeping the day-of-month inside the
// target month, so Jan 31 + 1 month is Feb 28/29 rather than early March.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	if last := daysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	return target.AddDate(0, 0, d-1)
}
