package ics

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "mybrain/internal/log"
	"mybrain/internal/model"
)

// Source turns a set of subscribed feeds into concrete events for a range.
type Source struct {
	fetcher *Fetcher
	feeds   []Feed
	loc     *time.Location
}

func NewSource(fetcher *Fetcher, feeds []Feed, loc *time.Location) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{fetcher: fetcher, feeds: feeds, loc: loc}
}

// Events fetches every feed and expands it over [start, end). Feeds that
// fail to fetch or parse are skipped; their errors are joined into the
// returned error alongside the events that did load.
func (s *Source) Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	if !end.After(start) {
		return nil, nil
	}
	results, fetchErr := s.fetcher.FetchAll(ctx, s.feeds)
	errs := []error{fetchErr}

	var parsed []ParsedEvent
	for _, res := range results {
		evs, err := ParseFeed(res.Feed, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Feed.ID, "url", redactURL(res.Feed.URL))
			errs = append(errs, fmt.Errorf("feed %s: %w", res.Feed.ID, err))
			continue
		}
		parsed = append(parsed, evs...)
	}

	// Expand treats End as inclusive; the range is half-open.
	out, err := Expand(parsed, ExpandOptions{
		Location: s.loc,
		Start:    start,
		End:      end.Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, err
	}
	return out.Events, errors.Join(errs...)
}
