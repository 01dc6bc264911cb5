package model

import "time"

// CalendarEvent is a single concrete event occurrence as delivered by the
// upstream API (or produced by ICS expansion). Recurring series arrive
// already expanded; OriginalEventID points back at the series for those
// instances.
type CalendarEvent struct {
	ID    string `json:"_id"`
	Title string `json:"title"`

	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	AllDay    bool      `json:"allDay"`

	// Color is a display hint only.
	Color    string `json:"color,omitempty"`
	Location string `json:"location,omitempty"`

	Recurrence      *Recurrence `json:"recurrence,omitempty"`
	OriginalEventID string      `json:"originalEventId,omitempty"`

	// SourceID names the feed the event came from ("" for the main API).
	SourceID string `json:"sourceId,omitempty"`
}

// Recurrence describes the series an event belongs to. Expansion into
// occurrences never happens in the view layer.
type Recurrence struct {
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval,omitempty"`
	Rule      string `json:"rule,omitempty"`
}

// Normalize enforces EndDate >= StartDate by clamping a reversed end.
func (e *CalendarEvent) Normalize() {
	if e.EndDate.Before(e.StartDate) {
		e.EndDate = e.StartDate
	}
}

// IsRecurringInstance reports whether the event is an occurrence of a series.
func (e CalendarEvent) IsRecurringInstance() bool {
	return e.OriginalEventID != ""
}

// SeriesID returns the ID that edits should target: the series for a
// recurring instance, the event itself otherwise.
func (e CalendarEvent) SeriesID() string {
	if e.OriginalEventID != "" {
		return e.OriginalEventID
	}
	return e.ID
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Task struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Status      string     `json:"status,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	SourceID string `json:"sourceId,omitempty"`
}

// IsUrgentOrHigh reports whether the task qualifies for priority focus.
func (t Task) IsUrgentOrHigh() bool {
	return t.Priority == PriorityUrgent || t.Priority == PriorityHigh
}

type Participant struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Conversation struct {
	ID           string        `json:"_id"`
	Participants []Participant `json:"participants"`
	UnreadCount  int           `json:"unreadCount"`
}

// TaskSummary is the task portion of the dashboard.
type TaskSummary struct {
	// Overdue is sorted oldest due date first.
	Overdue        []Task `json:"overdue"`
	DueToday       []Task `json:"dueToday"`
	CompletedToday int    `json:"completedToday"`
}

// MessageSummary is the inbox portion of the dashboard.
type MessageSummary struct {
	UnreadCount   int            `json:"unreadCount"`
	Conversations []Conversation `json:"conversations"`
}

// DashboardData is everything the focus selector looks at. It is rebuilt
// on every refresh and never persisted.
type DashboardData struct {
	Now time.Time `json:"now"`

	// Events are today's events in chronological order.
	Events   []CalendarEvent `json:"events"`
	Upcoming []CalendarEvent `json:"upcoming,omitempty"`

	OverdueTasks   []Task `json:"overdueTasks"`
	TodayTasks     []Task `json:"todayTasks"`
	CompletedToday int    `json:"completedToday"`

	UnreadCount   int            `json:"unreadCount"`
	Conversations []Conversation `json:"conversations,omitempty"`
}
