package calendar

import "time"

// Range is the half-open [Start, End) window a view shows. It only scopes
// the data fetch; nothing else depends on it.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Overlaps reports whether [start, end] intersects the range.
func (r Range) Overlaps(start, end time.Time) bool {
	return start.Before(r.End) && !end.Before(r.Start)
}

// RangeFor returns the visible window of view at ref. The month range
// covers the whole 42-cell grid including overflow days.
func (b Builder) RangeFor(view View, ref time.Time) Range {
	var g Grid
	switch view {
	case ViewWeek:
		g = b.Week(ref, ref)
	case ViewDay:
		g = b.Day(ref, ref)
	default:
		g = b.Month(ref, ref)
	}
	return Range{Start: g.First(), End: g.Last().AddDate(0, 0, 1)}
}

// RangeFor is Builder{}.RangeFor.
func RangeFor(view View, ref time.Time) Range {
	return Builder{}.RangeFor(view, ref)
}
