package calendar

import (
	"time"

	"mybrain/internal/model"
)

// Bucket holds the events rendered in one day cell. All-day events live in
// the always-visible strip, timed events in the hour column.
type Bucket struct {
	AllDay []model.CalendarEvent `json:"allDay"`
	Timed  []model.CalendarEvent `json:"timed"`
}

// span returns the first and last calendar day (as local midnights in loc)
// that ev touches. All-day events cover their whole start and end days.
func span(ev model.CalendarEvent, loc *time.Location) (time.Time, time.Time) {
	start := ev.StartDate.In(loc)
	end := ev.EndDate.In(loc)
	if end.Before(start) {
		end = start
	}
	return StartOfDay(start), StartOfDay(end)
}

// Touches reports whether ev renders on day: day is its start day, its end
// day, or any day strictly between.
func Touches(ev model.CalendarEvent, day time.Time) bool {
	first, last := span(ev, day.Location())
	d := StartOfDay(day)
	return !d.Before(first) && !d.After(last)
}

// Partition buckets events per cell. Every cell gets a bucket, possibly
// empty. Within a bucket events keep the order of the source list.
func Partition(events []model.CalendarEvent, grid Grid) map[string]*Bucket {
	out := make(map[string]*Bucket, len(grid))
	for _, c := range grid {
		out[c.Key] = &Bucket{}
	}

	for _, ev := range events {
		for _, c := range grid {
			if !Touches(ev, c.Date) {
				continue
			}
			b := out[c.Key]
			if ev.AllDay {
				b.AllDay = append(b.AllDay, ev)
			} else {
				b.Timed = append(b.Timed, ev)
			}
		}
	}
	return out
}

// PartitionHours groups the timed events touching day by the hour slot
// they begin in on that day. Events that started on an earlier day land
// in slot 0.
func PartitionHours(events []model.CalendarEvent, day time.Time) map[int][]model.CalendarEvent {
	out := make(map[int][]model.CalendarEvent)
	dayStart := StartOfDay(day)
	for _, ev := range events {
		if ev.AllDay || !Touches(ev, day) {
			continue
		}
		start := ev.StartDate.In(day.Location())
		hour := 0
		if !start.Before(dayStart) {
			hour = start.Hour()
		}
		out[hour] = append(out[hour], ev)
	}
	return out
}
