package calendar_test

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"mybrain/internal/calendar"
)

func TestApply(t *testing.T) {
	now := date(2024, time.June, 20)
	start := calendar.State{View: calendar.ViewMonth, Ref: date(2024, time.March, 15)}

	tests := []struct {
		name       string
		in         calendar.Intent
		wantView   calendar.View
		wantRef    string
		wantEffect calendar.EffectKind
		wantLink   string
	}{
		{"select day", calendar.Intent{Kind: calendar.IntentSelectDay, Date: date(2024, time.March, 3)}, calendar.ViewDay, "2024-03-03", calendar.EffectNone, ""},
		{"select day without date", calendar.Intent{Kind: calendar.IntentSelectDay}, calendar.ViewMonth, "2024-03-15", calendar.EffectNone, ""},
		{"next", calendar.Intent{Kind: calendar.IntentNext}, calendar.ViewMonth, "2024-04-15", calendar.EffectNone, ""},
		{"previous", calendar.Intent{Kind: calendar.IntentPrevious}, calendar.ViewMonth, "2024-02-15", calendar.EffectNone, ""},
		{"today", calendar.Intent{Kind: calendar.IntentToday}, calendar.ViewMonth, "2024-06-20", calendar.EffectNone, ""},
		{"change view", calendar.Intent{Kind: calendar.IntentChangeView, View: calendar.ViewWeek}, calendar.ViewWeek, "2024-03-15", calendar.EffectNone, ""},
		{"open event", calendar.Intent{Kind: calendar.IntentOpenEvent, EventID: "e1"}, calendar.ViewMonth, "2024-03-15", calendar.EffectOpenEvent, "/calendar/events/e1"},
		{"open recurring instance", calendar.Intent{Kind: calendar.IntentOpenEvent, EventID: "e1-2024", OriginalEventID: "series"}, calendar.ViewMonth, "2024-03-15", calendar.EffectOpenEvent, "/calendar/events/series"},
		{"unknown", calendar.Intent{Kind: "zoom"}, calendar.ViewMonth, "2024-03-15", calendar.EffectNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, eff := calendar.Apply(start, tt.in, now)
			if st.View != tt.wantView || calendar.DayKey(st.Ref) != tt.wantRef {
				t.Errorf("state = %s %s, want %s %s", st.View, calendar.DayKey(st.Ref), tt.wantView, tt.wantRef)
			}
			if eff.Kind != tt.wantEffect || eff.Link != tt.wantLink {
				t.Errorf("effect = %+v", eff)
			}
		})
	}
}

func TestStateEncodeDecode(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	st := calendar.State{View: calendar.ViewWeek, Ref: time.Date(2024, time.July, 3, 23, 30, 0, 0, loc)}

	enc := st.Encode()
	if enc != "week:2024-07-03" {
		t.Fatalf("Encode = %q", enc)
	}
	got, err := calendar.DecodeState(enc, loc)
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	if got.View != calendar.ViewWeek || calendar.DayKey(got.Ref) != "2024-07-03" {
		t.Errorf("decoded %+v", got)
	}

	for _, bad := range []string{"", "week", "week:yesterday"} {
		if _, err := calendar.DecodeState(bad, loc); err == nil {
			t.Errorf("DecodeState(%q) should fail", bad)
		}
	}
}

func TestParseIntent(t *testing.T) {
	in, err := calendar.ParseIntent(url.Values{"kind": {"select-day"}, "date": {"2024-03-15"}}, time.UTC)
	if err != nil {
		t.Fatalf("ParseIntent: %v", err)
	}
	if in.Kind != calendar.IntentSelectDay || calendar.DayKey(in.Date) != "2024-03-15" {
		t.Errorf("intent = %+v", in)
	}

	if _, err := calendar.ParseIntent(url.Values{"kind": {"select-day"}}, time.UTC); err == nil {
		t.Error("select-day without date should fail")
	}
	_, err = calendar.ParseIntent(url.Values{"kind": {"explode"}}, time.UTC)
	if !errors.Is(err, calendar.ErrUnknownIntent) {
		t.Errorf("got %v, want ErrUnknownIntent", err)
	}
}
