package calendar_test

import (
	"testing"
	"time"

	"mybrain/internal/calendar"
	"mybrain/internal/model"
)

func TestBuildPageMonth(t *testing.T) {
	events := []model.CalendarEvent{
		{ID: "lunch", StartDate: at(2024, time.March, 15, 12, 0), EndDate: at(2024, time.March, 15, 13, 0)},
		{ID: "offsite", AllDay: true, StartDate: at(2024, time.March, 20, 0, 0), EndDate: at(2024, time.March, 21, 0, 0)},
	}
	page := calendar.BuildPage(calendar.State{View: calendar.ViewMonth, Ref: date(2024, time.March, 15)}, events, date(2024, time.March, 15))

	if page.Title != "March 2024" {
		t.Errorf("title %q", page.Title)
	}
	if len(page.Days) != 42 || len(page.Hours) != 0 {
		t.Fatalf("got %d days, %d hours", len(page.Days), len(page.Hours))
	}
	if page.Weekdays[0] != "Sun" || page.Weekdays[6] != "Sat" {
		t.Errorf("weekdays %v", page.Weekdays)
	}

	byKey := map[string]calendar.DayView{}
	for _, d := range page.Days {
		byKey[d.Key] = d
	}
	lunch := byKey["2024-03-15"]
	if len(lunch.Timed) != 1 || lunch.Timed[0].Placement != nil {
		t.Errorf("month view timed events should be unplaced: %+v", lunch.Timed)
	}
	if !lunch.IsToday {
		t.Error("March 15 should be today")
	}
	if len(byKey["2024-03-20"].AllDay) != 1 || len(byKey["2024-03-21"].AllDay) != 1 {
		t.Error("offsite should cover the 20th and 21st")
	}
}

func TestBuildPageWeekPlacesEvents(t *testing.T) {
	events := []model.CalendarEvent{
		{ID: "quick", StartDate: at(2024, time.July, 3, 9, 0), EndDate: at(2024, time.July, 3, 9, 10)},
		// Reversed end is clamped to the start.
		{ID: "broken", StartDate: at(2024, time.July, 4, 10, 0), EndDate: at(2024, time.July, 4, 8, 0)},
	}
	page := calendar.BuildPage(calendar.State{View: calendar.ViewWeek, Ref: date(2024, time.July, 3)}, events, date(2024, time.July, 3))

	if page.Title != "Jun 30 - Jul 6, 2024" {
		t.Errorf("title %q", page.Title)
	}
	if len(page.Days) != 7 || len(page.Hours) != 24 {
		t.Fatalf("got %d days, %d hours", len(page.Days), len(page.Hours))
	}
	quick := page.Days[3].Timed
	if len(quick) != 1 || quick[0].Placement == nil || quick[0].Placement.Height != calendar.WeekMinHeight {
		t.Fatalf("quick placement = %+v", quick)
	}
	broken := page.Days[4].Timed
	if len(broken) != 1 || broken[0].Placement.Height != calendar.WeekMinHeight || broken[0].Placement.Top != 600 {
		t.Errorf("broken placement = %+v", broken[0].Placement)
	}
	if !page.Range.Start.Equal(at(2024, time.June, 30, 0, 0)) {
		t.Errorf("range start %v", page.Range.Start)
	}
}

func TestBuildPageDayUsesDayFloor(t *testing.T) {
	events := []model.CalendarEvent{
		{ID: "quick", StartDate: at(2024, time.July, 3, 9, 0), EndDate: at(2024, time.July, 3, 9, 10)},
	}
	page := calendar.BuildPage(calendar.State{View: calendar.ViewDay, Ref: date(2024, time.July, 3)}, events, date(2024, time.July, 1))

	if page.Title != "Wednesday, July 3, 2024" {
		t.Errorf("title %q", page.Title)
	}
	if len(page.Days) != 1 || page.Days[0].IsToday {
		t.Fatalf("days = %+v", page.Days)
	}
	if h := page.Days[0].Timed[0].Placement.Height; h != calendar.DayMinHeight {
		t.Errorf("height %v, want %v", h, calendar.DayMinHeight)
	}
}

func TestBuildPageWeekAcrossYears(t *testing.T) {
	page := calendar.BuildPage(calendar.State{View: calendar.ViewWeek, Ref: date(2024, time.December, 31)}, nil, date(2024, time.December, 31))
	if page.Title != "Dec 29, 2024 - Jan 4, 2025" {
		t.Errorf("title %q", page.Title)
	}
}
