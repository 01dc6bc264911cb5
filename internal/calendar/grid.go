// Package calendar builds the calendar page view model: date grids, event
// buckets, pixel placement, navigation and intent handling. Everything here
// is pure; callers pass the clock and the events in.
package calendar

import "time"

const (
	monthGridCells = 42
	daysPerWeek    = 7
	hoursPerDay    = 24
)

// Cell is one day in a month or week grid.
type Cell struct {
	Date           time.Time `json:"date"`
	Key            string    `json:"key"`
	InCurrentMonth bool      `json:"inCurrentMonth"`
	IsToday        bool      `json:"isToday"`
}

// Grid is an ordered run of consecutive days. It is rebuilt on every
// navigation and never edited in place.
type Grid []Cell

// First returns the first cell's date (zero for an empty grid).
func (g Grid) First() time.Time {
	if len(g) == 0 {
		return time.Time{}
	}
	return g[0].Date
}

// Last returns the last cell's date (zero for an empty grid).
func (g Grid) Last() time.Time {
	if len(g) == 0 {
		return time.Time{}
	}
	return g[len(g)-1].Date
}

// HourSlot is one row of the 24-hour day column.
type HourSlot struct {
	Hour  int       `json:"hour"`
	Start time.Time `json:"start"`
	Label string    `json:"label"`
}

// Builder produces grids for a configurable first weekday. The zero value
// starts weeks on Sunday.
type Builder struct {
	WeekStart time.Weekday
}

// weekStartOn returns midnight of the first weekday on or before t.
func (b Builder) weekStartOn(t time.Time) time.Time {
	offset := (int(t.Weekday()) - int(b.WeekStart) + daysPerWeek) % daysPerWeek
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// Month returns the 6x7 grid for ref's month. The grid always has 42 cells
// so the layout keeps six rows whatever the month length or first weekday.
func (b Builder) Month(ref, today time.Time) Grid {
	loc := ref.Location()
	year, month, _ := ref.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := b.weekStartOn(first)
	today = today.In(loc)

	grid := make(Grid, 0, monthGridCells)
	for i := 0; i < monthGridCells; i++ {
		d := start.AddDate(0, 0, i)
		grid = append(grid, Cell{
			Date:           d,
			Key:            DayKey(d),
			InCurrentMonth: d.Year() == year && d.Month() == month,
			IsToday:        SameDay(d, today),
		})
	}
	return grid
}

// Week returns the seven days of the week containing ref. Weeks are never
// split at month or year boundaries; InCurrentMonth is relative to ref.
func (b Builder) Week(ref, today time.Time) Grid {
	loc := ref.Location()
	year, month, _ := ref.Date()
	start := b.weekStartOn(ref)
	today = today.In(loc)

	grid := make(Grid, 0, daysPerWeek)
	for i := 0; i < daysPerWeek; i++ {
		d := start.AddDate(0, 0, i)
		grid = append(grid, Cell{
			Date:           d,
			Key:            DayKey(d),
			InCurrentMonth: d.Year() == year && d.Month() == month,
			IsToday:        SameDay(d, today),
		})
	}
	return grid
}

// Day returns the single-cell grid for ref's day.
func (b Builder) Day(ref, today time.Time) Grid {
	d := StartOfDay(ref)
	return Grid{{
		Date:           d,
		Key:            DayKey(d),
		InCurrentMonth: true,
		IsToday:        SameDay(d, today.In(ref.Location())),
	}}
}

// BuildMonthGrid is Builder{}.Month with Sunday-first weeks.
func BuildMonthGrid(ref, today time.Time) Grid {
	return Builder{}.Month(ref, today)
}

// BuildWeekGrid is Builder{}.Week with Sunday-first weeks.
func BuildWeekGrid(ref, today time.Time) Grid {
	return Builder{}.Week(ref, today)
}

// BuildDayGrid returns the 24 hour slots of ref's day. Slot starts use wall
// clock hours, so on DST transition days one slot may be skipped or repeated
// in absolute time but the column still has 24 rows.
func BuildDayGrid(ref time.Time) []HourSlot {
	y, m, d := ref.Date()
	loc := ref.Location()
	slots := make([]HourSlot, 0, hoursPerDay)
	for h := 0; h < hoursPerDay; h++ {
		start := time.Date(y, m, d, h, 0, 0, 0, loc)
		slots = append(slots, HourSlot{
			Hour:  h,
			Start: start,
			Label: hourLabel(h),
		})
	}
	return slots
}

func hourLabel(h int) string {
	return time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("3 PM")
}
