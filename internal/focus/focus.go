// Package focus picks the single most important thing to show on the
// dashboard right now.
package focus

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"mybrain/internal/calendar"
	"mybrain/internal/model"
)

type Kind string

const (
	KindEventNow       Kind = "event-now"
	KindEventSoon      Kind = "event-soon"
	KindOverdue        Kind = "overdue"
	KindPriorityTask   Kind = "priority-task"
	KindMessages       Kind = "messages"
	KindAccomplishment Kind = "accomplishment"
	KindNextUp         Kind = "next-up"
	KindAllClear       Kind = "all-clear"
)

// SoonWindow is how far ahead an event counts as imminent.
const SoonWindow = 15 * time.Minute

// CommandQuickCapture is the callback the all-clear card triggers.
const CommandQuickCapture = "open-quick-capture"

type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionCallback ActionType = "callback"
)

type Action struct {
	Type    ActionType `json:"type"`
	Link    string     `json:"link,omitempty"`
	Command string     `json:"command,omitempty"`
}

// Candidate is the chosen focus item.
type Candidate struct {
	Kind   Kind   `json:"kind"`
	Label  string `json:"label"`
	Title  string `json:"title"`
	Meta   string `json:"meta,omitempty"`
	Action Action `json:"action"`
}

type rule func(d model.DashboardData) (Candidate, bool)

// rules are evaluated top to bottom; the first match wins.
var rules = []rule{
	eventNow,
	eventSoon,
	overdueTask,
	priorityTask,
	unreadMessages,
	accomplishment,
	nextUp,
}

// Select evaluates every rule in priority order against d. Nothing is
// remembered between calls.
func Select(d model.DashboardData) Candidate {
	if d.Now.IsZero() {
		d.Now = time.Now()
	}
	for _, r := range rules {
		if c, ok := r(d); ok {
			return c
		}
	}
	return Candidate{
		Kind:   KindAllClear,
		Label:  "All clear",
		Title:  "Nothing needs your attention",
		Meta:   "Capture an idea or plan ahead",
		Action: Action{Type: ActionCallback, Command: CommandQuickCapture},
	}
}

func eventNow(d model.DashboardData) (Candidate, bool) {
	for _, ev := range d.Events {
		start, end := ev.StartDate, ev.EndDate
		meta := "Until " + clock(ev.EndDate, d.Now)
		if ev.AllDay {
			// All-day events span midnight to end of day in the viewer's zone.
			start = calendar.StartOfDay(start.In(d.Now.Location()))
			end = calendar.EndOfDay(end.In(d.Now.Location()))
			meta = "All day"
		}
		if !d.Now.Before(start) && !d.Now.After(end) {
			return Candidate{
				Kind:   KindEventNow,
				Label:  "Happening now",
				Title:  ev.Title,
				Meta:   withLocation(meta, ev.Location),
				Action: eventAction(ev, d.Now),
			}, true
		}
	}
	return Candidate{}, false
}

// eventSoon also looks at upcoming events so one starting just after
// midnight is announced late the evening before.
func eventSoon(d model.DashboardData) (Candidate, bool) {
	for _, events := range [][]model.CalendarEvent{d.Events, d.Upcoming} {
		for _, ev := range events {
			if ev.AllDay {
				continue
			}
			until := ev.StartDate.Sub(d.Now)
			if until <= 0 || until > SoonWindow {
				continue
			}
			minutes := int(math.Ceil(until.Minutes()))
			return Candidate{
				Kind:   KindEventSoon,
				Label:  fmt.Sprintf("Starting in %d min", minutes),
				Title:  ev.Title,
				Meta:   withLocation(clock(ev.StartDate, d.Now), ev.Location),
				Action: eventAction(ev, d.Now),
			}, true
		}
	}
	return Candidate{}, false
}

func overdueTask(d model.DashboardData) (Candidate, bool) {
	if len(d.OverdueTasks) == 0 {
		return Candidate{}, false
	}
	task := d.OverdueTasks[0]
	return Candidate{
		Kind:   KindOverdue,
		Label:  "Overdue",
		Title:  task.Title,
		Meta:   overdueText(DaysOverdue(task, d.Now)),
		Action: taskAction(task),
	}, true
}

// DaysOverdue counts whole calendar days between the task's due date and
// now, both truncated to midnight in now's location. A task without a due
// date is treated as due today.
func DaysOverdue(task model.Task, now time.Time) int {
	if task.DueDate == nil {
		return 0
	}
	days := calendar.DaysBetween(task.DueDate.In(now.Location()), now)
	if days < 0 {
		return 0
	}
	return days
}

func overdueText(days int) string {
	if days == 0 {
		return "Due today"
	}
	return plural(days, "day", "days") + " overdue"
}

func priorityTask(d model.DashboardData) (Candidate, bool) {
	for _, task := range d.TodayTasks {
		if !task.IsUrgentOrHigh() {
			continue
		}
		meta := "High priority, due today"
		if task.Priority == model.PriorityUrgent {
			meta = "Urgent, due today"
		}
		return Candidate{
			Kind:   KindPriorityTask,
			Label:  "Priority task",
			Title:  task.Title,
			Meta:   meta,
			Action: taskAction(task),
		}, true
	}
	return Candidate{}, false
}

func unreadMessages(d model.DashboardData) (Candidate, bool) {
	if d.UnreadCount <= 0 {
		return Candidate{}, false
	}
	c := Candidate{
		Kind:   KindMessages,
		Label:  "Messages",
		Title:  plural(d.UnreadCount, "unread message", "unread messages"),
		Action: Action{Type: ActionNavigate, Link: "/messages"},
	}
	if len(d.Conversations) > 0 {
		conv := d.Conversations[0]
		if len(conv.Participants) > 0 && conv.Participants[0].Name != "" {
			c.Meta = "From " + conv.Participants[0].Name
		}
		if conv.ID != "" {
			c.Action.Link = "/messages/" + url.PathEscape(conv.ID)
		}
	}
	return c, true
}

func accomplishment(d model.DashboardData) (Candidate, bool) {
	if d.CompletedToday <= 0 {
		return Candidate{}, false
	}
	return Candidate{
		Kind:   KindAccomplishment,
		Label:  "Nice work",
		Title:  plural(d.CompletedToday, "task", "tasks") + " completed today",
		Meta:   "Keep the momentum going",
		Action: Action{Type: ActionNavigate, Link: "/tasks?status=completed"},
	}, true
}

func nextUp(d model.DashboardData) (Candidate, bool) {
	if len(d.Events) == 0 {
		return Candidate{}, false
	}
	ev := d.Events[0]
	meta := clock(ev.StartDate, d.Now)
	if ev.AllDay {
		meta = "All day"
	}
	return Candidate{
		Kind:   KindNextUp,
		Label:  "Next up",
		Title:  ev.Title,
		Meta:   withLocation(meta, ev.Location),
		Action: eventAction(ev, d.Now),
	}, true
}

func eventAction(ev model.CalendarEvent, now time.Time) Action {
	day := calendar.FormatDateParam(ev.StartDate.In(now.Location()))
	return Action{Type: ActionNavigate, Link: "/calendar?" + calendar.DateParam + "=" + day}
}

func taskAction(task model.Task) Action {
	return Action{Type: ActionNavigate, Link: "/tasks/" + url.PathEscape(task.ID)}
}

func clock(t, now time.Time) string {
	return t.In(now.Location()).Format("3:04 PM")
}

func withLocation(s, location string) string {
	if location == "" {
		return s
	}
	return s + ", " + location
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
