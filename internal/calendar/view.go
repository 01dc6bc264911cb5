package calendar

import (
	"fmt"
	"time"

	"mybrain/internal/model"
)

// DayView is a grid cell with its events.
type DayView struct {
	Cell
	AllDay []model.CalendarEvent `json:"allDay"`
	Timed  []PlacedEvent         `json:"timed"`
}

// Page is the full view model of the calendar page for one State.
type Page struct {
	View      View       `json:"view"`
	Reference time.Time  `json:"reference"`
	Title     string     `json:"title"`
	Range     Range      `json:"range"`
	Days      []DayView  `json:"days"`
	Hours     []HourSlot `json:"hours,omitempty"`
	Weekdays  []string   `json:"weekdays"`
	LoadError bool       `json:"loadError,omitempty"`
}

// BuildPage assembles the view model. Events outside the visible range are
// simply never matched to a cell.
func (b Builder) BuildPage(s State, events []model.CalendarEvent, now time.Time) Page {
	view := ParseView(string(s.View))
	ref := s.Ref
	if ref.IsZero() {
		ref = Noon(now)
	}

	normalized := make([]model.CalendarEvent, len(events))
	for i, ev := range events {
		ev.Normalize()
		normalized[i] = ev
	}

	var (
		grid      Grid
		minHeight float64
	)
	switch view {
	case ViewWeek:
		grid = b.Week(ref, now)
		minHeight = WeekMinHeight
	case ViewDay:
		grid = b.Day(ref, now)
		minHeight = DayMinHeight
	default:
		grid = b.Month(ref, now)
	}

	buckets := Partition(normalized, grid)
	days := make([]DayView, 0, len(grid))
	for _, c := range grid {
		bucket := buckets[c.Key]
		dv := DayView{Cell: c, AllDay: bucket.AllDay}
		if view == ViewMonth {
			dv.Timed = make([]PlacedEvent, 0, len(bucket.Timed))
			for _, ev := range bucket.Timed {
				dv.Timed = append(dv.Timed, PlacedEvent{Event: ev})
			}
		} else {
			dv.Timed = PlaceAll(bucket.Timed, c.Date, minHeight)
		}
		days = append(days, dv)
	}

	p := Page{
		View:      view,
		Reference: ref,
		Title:     title(view, ref, grid),
		Range:     Range{Start: grid.First(), End: grid.Last().AddDate(0, 0, 1)},
		Days:      days,
		Weekdays:  b.weekdayNames(),
	}
	if view != ViewMonth {
		p.Hours = BuildDayGrid(ref)
	}
	return p
}

// BuildPage is Builder{}.BuildPage.
func BuildPage(s State, events []model.CalendarEvent, now time.Time) Page {
	return Builder{}.BuildPage(s, events, now)
}

func (b Builder) weekdayNames() []string {
	names := make([]string, 0, daysPerWeek)
	for i := 0; i < daysPerWeek; i++ {
		names = append(names, time.Weekday((int(b.WeekStart)+i)%daysPerWeek).String()[:3])
	}
	return names
}

func title(view View, ref time.Time, grid Grid) string {
	switch view {
	case ViewWeek:
		first, last := grid.First(), grid.Last()
		if first.Year() != last.Year() {
			return fmt.Sprintf("%s - %s", first.Format("Jan 2, 2006"), last.Format("Jan 2, 2006"))
		}
		return fmt.Sprintf("%s - %s", first.Format("Jan 2"), last.Format("Jan 2, 2006"))
	case ViewDay:
		return ref.Format("Monday, January 2, 2006")
	default:
		return ref.Format("January 2006")
	}
}
