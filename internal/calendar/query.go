package calendar

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DateParam is the query parameter that deep-links the calendar to a day.
const DateParam = "date"

// FormatDateParam renders t's calendar day as YYYY-MM-DD.
func FormatDateParam(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ParseDateParam parses YYYY-MM-DD as local noon in loc. Noon keeps the
// day stable when the value is later shown in a zone a few hours off.
func ParseDateParam(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DayKeyLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: invalid %s parameter %q: %w", DateParam, s, err)
	}
	return Noon(d), nil
}

// ConsumeDateParam reads ?date= once. It returns the day-view state for that
// date, a copy of values without the parameter, and whether a valid date was
// found. An unparsable value is still removed from the returned copy.
func ConsumeDateParam(values url.Values, loc *time.Location) (State, url.Values, bool) {
	raw, present := values[DateParam]
	if !present {
		return State{}, values, false
	}

	cleaned := make(url.Values, len(values))
	for k, v := range values {
		if k == DateParam {
			continue
		}
		cleaned[k] = append([]string(nil), v...)
	}

	if len(raw) == 0 {
		return State{}, cleaned, false
	}
	ref, err := ParseDateParam(raw[0], loc)
	if err != nil {
		return State{}, cleaned, false
	}
	return State{View: ViewDay, Ref: ref}, cleaned, true
}
