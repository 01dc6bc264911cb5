package calendar_test

import (
	"net/url"
	"testing"
	"time"

	"mybrain/internal/calendar"
)

var zones = []*time.Location{
	time.UTC,
	time.FixedZone("UTC-11", -11*3600),
	time.FixedZone("UTC-8", -8*3600),
	time.FixedZone("UTC+5:45", 5*3600+45*60),
	time.FixedZone("UTC+14", 14*3600),
}

func TestDateParamRoundTripAcrossZones(t *testing.T) {
	for _, loc := range zones {
		t.Run(loc.String(), func(t *testing.T) {
			ref, err := calendar.ParseDateParam("2024-03-15", loc)
			if err != nil {
				t.Fatalf("ParseDateParam: %v", err)
			}
			if ref.Hour() != 12 {
				t.Errorf("anchored at %d:00, want noon", ref.Hour())
			}
			if got := calendar.FormatDateParam(ref); got != "2024-03-15" {
				t.Errorf("round trip gave %s", got)
			}

			page := calendar.BuildPage(calendar.State{View: calendar.ViewDay, Ref: ref}, nil, ref)
			if len(page.Days) != 1 || page.Days[0].Key != "2024-03-15" {
				t.Fatalf("day view days = %+v", page.Days)
			}
			if len(page.Hours) != 24 {
				t.Errorf("day view has %d hour slots", len(page.Hours))
			}
		})
	}
}

func TestParseDateParamRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "2024-13-01", "15/03/2024", "2024-02-30"} {
		if _, err := calendar.ParseDateParam(in, time.UTC); err == nil {
			t.Errorf("ParseDateParam(%q) should fail", in)
		}
	}
}

func TestConsumeDateParam(t *testing.T) {
	values := url.Values{"date": {"2024-03-15"}, "tab": {"agenda"}}

	st, cleaned, ok := calendar.ConsumeDateParam(values, time.UTC)
	if !ok {
		t.Fatal("expected the date to be consumed")
	}
	if st.View != calendar.ViewDay || calendar.DayKey(st.Ref) != "2024-03-15" {
		t.Errorf("state = %+v", st)
	}
	if cleaned.Has("date") {
		t.Error("date param should be cleared")
	}
	if cleaned.Get("tab") != "agenda" {
		t.Error("unrelated params must survive")
	}
	if !values.Has("date") {
		t.Error("input values must not be modified")
	}

	// Second pass over the cleaned values finds nothing.
	if _, _, ok := calendar.ConsumeDateParam(cleaned, time.UTC); ok {
		t.Error("param consumed twice")
	}
}

func TestConsumeDateParamInvalidStillCleared(t *testing.T) {
	_, cleaned, ok := calendar.ConsumeDateParam(url.Values{"date": {"nope"}}, time.UTC)
	if ok {
		t.Error("invalid date reported as consumed")
	}
	if cleaned.Has("date") {
		t.Error("invalid date should still be dropped")
	}
}
