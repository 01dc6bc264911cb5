package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"mybrain/internal/calendar"
	"mybrain/internal/model"
)

// ErrSuperseded is returned by RangeLoader.Load when a newer Load started
// before this one finished.
var ErrSuperseded = errors.New("api: superseded by a newer request")

// EventSource fetches events in a range. *Client implements it.
type EventSource interface {
	Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error)
}

// RangeLoader serializes view-range fetches so that the newest request
// wins. Starting a load cancels the one in flight, and a load that
// completes after a newer one started reports ErrSuperseded instead of
// its (stale) events.
type RangeLoader struct {
	src EventSource

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewRangeLoader(src EventSource) *RangeLoader {
	return &RangeLoader{src: src}
}

func (l *RangeLoader) Load(ctx context.Context, r calendar.Range) ([]model.CalendarEvent, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	id := l.seq
	l.cancel = cancel
	l.mu.Unlock()

	events, err := l.src.Events(ctx, r.Start, r.End)

	l.mu.Lock()
	latest := id == l.seq
	if latest {
		l.cancel = nil
	}
	l.mu.Unlock()

	if !latest {
		return nil, ErrSuperseded
	}
	return events, err
}
