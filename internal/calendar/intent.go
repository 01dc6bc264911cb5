package calendar

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// State is the whole of the calendar page's navigation state.
type State struct {
	View View      `json:"view"`
	Ref  time.Time `json:"reference"`
}

// DefaultState is month view anchored at now.
func DefaultState(now time.Time) State {
	return State{View: ViewMonth, Ref: Noon(now)}
}

// Encode renders the state as "<view>:<YYYY-MM-DD>".
func (s State) Encode() string {
	return string(ParseView(string(s.View))) + ":" + FormatDateParam(s.Ref)
}

// DecodeState parses the output of State.Encode in loc.
func DecodeState(s string, loc *time.Location) (State, error) {
	view, date, ok := strings.Cut(s, ":")
	if !ok {
		return State{}, fmt.Errorf("calendar: malformed state %q", s)
	}
	ref, err := ParseDateParam(date, loc)
	if err != nil {
		return State{}, err
	}
	return State{View: ParseView(view), Ref: ref}, nil
}

type IntentKind string

const (
	IntentSelectDay  IntentKind = "select-day"
	IntentOpenEvent  IntentKind = "open-event"
	IntentNext       IntentKind = "next"
	IntentPrevious   IntentKind = "previous"
	IntentToday      IntentKind = "today"
	IntentChangeView IntentKind = "change-view"
)

// Intent is what a click means, stripped of any UI detail.
type Intent struct {
	Kind            IntentKind
	Date            time.Time
	View            View
	EventID         string
	OriginalEventID string
}

type EffectKind string

const (
	EffectNone      EffectKind = ""
	EffectOpenEvent EffectKind = "open-event"
)

// Effect is work the caller has to do outside the pure state transition.
type Effect struct {
	Kind    EffectKind `json:"kind,omitempty"`
	EventID string     `json:"eventId,omitempty"`
	Link    string     `json:"link,omitempty"`
}

var ErrUnknownIntent = errors.New("calendar: unknown intent")

// Apply is the calendar page reducer. It never fails: intents that carry
// no usable data leave the state unchanged.
func Apply(s State, in Intent, now time.Time) (State, Effect) {
	switch in.Kind {
	case IntentSelectDay:
		if in.Date.IsZero() {
			return s, Effect{}
		}
		return State{View: ViewDay, Ref: Noon(in.Date)}, Effect{}
	case IntentOpenEvent:
		id := in.EventID
		if in.OriginalEventID != "" {
			id = in.OriginalEventID
		}
		if id == "" {
			return s, Effect{}
		}
		return s, Effect{
			Kind:    EffectOpenEvent,
			EventID: id,
			Link:    "/calendar/events/" + url.PathEscape(id),
		}
	case IntentNext:
		return State{View: s.View, Ref: Next(s.View, s.Ref)}, Effect{}
	case IntentPrevious:
		return State{View: s.View, Ref: Previous(s.View, s.Ref)}, Effect{}
	case IntentToday:
		return State{View: s.View, Ref: Noon(now.In(locationOf(s.Ref)))}, Effect{}
	case IntentChangeView:
		return State{View: ParseView(string(in.View)), Ref: s.Ref}, Effect{}
	default:
		return s, Effect{}
	}
}

// ParseIntent reads an intent from form fields: kind, date, view, event_id,
// original_event_id.
func ParseIntent(form url.Values, loc *time.Location) (Intent, error) {
	in := Intent{
		Kind:            IntentKind(strings.TrimSpace(form.Get("kind"))),
		View:            ParseView(form.Get("view")),
		EventID:         strings.TrimSpace(form.Get("event_id")),
		OriginalEventID: strings.TrimSpace(form.Get("original_event_id")),
	}
	switch in.Kind {
	case IntentSelectDay:
		d, err := ParseDateParam(form.Get("date"), loc)
		if err != nil {
			return Intent{}, err
		}
		in.Date = d
	case IntentOpenEvent, IntentNext, IntentPrevious, IntentToday, IntentChangeView:
	default:
		return Intent{}, fmt.Errorf("%w: %q", ErrUnknownIntent, in.Kind)
	}
	return in, nil
}

func locationOf(t time.Time) *time.Location {
	if t.IsZero() {
		return time.Local
	}
	return t.Location()
}
