package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"mybrain/internal/model"
)

const productID = "-//mybrain//calendar export//EN"

// Export serializes events into an iCalendar document. Recurring instances
// are written as standalone VEVENTs with RELATED-TO pointing at the series,
// since the expanded rule is no longer known here.
func Export(name string, events []model.CalendarEvent, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(ev.Title)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Color != "" {
			ve.SetProperty(ical.ComponentProperty("COLOR"), ev.Color)
		}
		if ev.AllDay {
			y, m, d := ev.StartDate.Date()
			first := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
			y, m, d = ev.EndDate.Date()
			// DTEND is exclusive for DATE values.
			last := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
			ve.SetAllDayStartAt(first)
			ve.SetAllDayEndAt(last)
		} else {
			ve.SetStartAt(ev.StartDate.UTC())
			ve.SetEndAt(ev.EndDate.UTC())
		}
		if ev.OriginalEventID != "" {
			ve.SetProperty(ical.ComponentProperty("RELATED-TO"), ev.OriginalEventID)
		}
	}

	return cal.Serialize()
}
