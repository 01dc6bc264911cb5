package calendar

import (
	"time"

	"mybrain/internal/model"
)

// Pixel geometry of the hour column: one minute is one pixel.
const (
	HourHeight   = 60
	ColumnHeight = hoursPerDay * HourHeight

	// Minimum event heights. The week and day views use different floors.
	WeekMinHeight = 20
	DayMinHeight  = 30
)

// Placement is the vertical box of a timed event inside a day column.
type Placement struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Position maps ev onto the column of the day starting at dayStart.
// top = (hour + minute/60) * 60 and height = duration in minutes, floored
// at minHeight. Parts of the event outside the day are clipped.
func Position(ev model.CalendarEvent, dayStart time.Time, minHeight float64) Placement {
	loc := dayStart.Location()
	dayStart = StartOfDay(dayStart)
	start := ev.StartDate.In(loc)
	end := ev.EndDate.In(loc)

	startMin := minutesOfDay(start)
	if start.Before(dayStart) {
		startMin = 0
	}
	endMin := minutesOfDay(end)
	if !SameDay(end, dayStart) && end.After(dayStart) {
		endMin = ColumnHeight
	}

	height := endMin - startMin
	if height < minHeight {
		height = minHeight
	}
	return Placement{
		Top:    startMin * HourHeight / 60,
		Height: height * HourHeight / 60,
	}
}

func minutesOfDay(t time.Time) float64 {
	return float64(t.Hour()*60 + t.Minute())
}

// PlacedEvent pairs an event with its column placement. Placement is nil
// where the view does not position events (month view).
type PlacedEvent struct {
	Event     model.CalendarEvent `json:"event"`
	Placement *Placement          `json:"placement,omitempty"`
}

// PlaceAll positions every event for one day column, keeping input order.
func PlaceAll(events []model.CalendarEvent, dayStart time.Time, minHeight float64) []PlacedEvent {
	out := make([]PlacedEvent, 0, len(events))
	for _, ev := range events {
		p := Position(ev, dayStart, minHeight)
		out = append(out, PlacedEvent{Event: ev, Placement: &p})
	}
	return out
}
