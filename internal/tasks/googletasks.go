// Package tasks reads tasks from Google Tasks lists and folds them into the
// dashboard task summary.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gtasks "google.golang.org/api/tasks/v1"

	"mybrain/internal/calendar"
	appLog "mybrain/internal/log"
	"mybrain/internal/model"
)

const (
	// DefaultListID is the special ID for the user's default list.
	DefaultListID = "@default"

	// SourceID tags tasks coming from Google Tasks.
	SourceID = "google-tasks"

	OAuthClientFile = "oauth_client.json"
	TokenFile       = "token.json"

	// APITimeout bounds each list read.
	APITimeout = 5 * time.Second

	pageSize   = 100
	tasksScope = "https://www.googleapis.com/auth/tasks.readonly"
)

var (
	ErrAuth     = errors.New("tasks: token expired or revoked")
	ErrNotFound = errors.New("tasks: list not found")
)

// Source reads open and recently completed tasks from a set of lists.
type Source struct {
	svc   *gtasks.Service
	lists []string
}

// New builds a Source from oauth_client.json and token.json in dir. The
// token is refreshed automatically by the oauth2 token source.
func New(ctx context.Context, dir string, lists []string) (*Source, error) {
	clientJSON, err := os.ReadFile(filepath.Join(dir, OAuthClientFile))
	if err != nil {
		return nil, fmt.Errorf("tasks: read %s: %w", OAuthClientFile, err)
	}
	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("tasks: invalid %s: %w", OAuthClientFile, err)
	}

	tokenData, err := os.ReadFile(filepath.Join(dir, TokenFile))
	if err != nil {
		return nil, fmt.Errorf("tasks: read %s: %w", TokenFile, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("tasks: invalid %s: %w", TokenFile, err)
	}

	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))
	return NewWithHTTPClient(ctx, httpClient, lists)
}

// NewWithHTTPClient builds a Source on a preconfigured client. Extra
// options (such as option.WithEndpoint in tests) are passed through.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, lists []string, opts ...option.ClientOption) (*Source, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gtasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tasks: create service: %w", err)
	}
	if len(lists) == 0 {
		lists = []string{DefaultListID}
	}
	return &Source{svc: svc, lists: lists}, nil
}

// Load summarizes every configured list relative to now: open tasks due
// before today are overdue, open tasks due today are due today, and tasks
// completed today are counted. A failing list is logged and skipped; its
// error is joined into the result.
func (s *Source) Load(ctx context.Context, now time.Time) (model.TaskSummary, error) {
	var (
		sum  model.TaskSummary
		errs []error
	)
	today := calendar.StartOfDay(now)

	for _, list := range s.lists {
		items, err := s.listTasks(ctx, list)
		if err != nil {
			appLog.Error("google tasks list failed", err, "list", list)
			errs = append(errs, fmt.Errorf("list %s: %w", list, err))
			continue
		}
		for _, it := range items {
			classify(&sum, toTask(it, now.Location()), today)
		}
	}

	sort.SliceStable(sum.Overdue, func(i, j int) bool {
		return sum.Overdue[i].DueDate.Before(*sum.Overdue[j].DueDate)
	})
	appLog.Debug("google tasks loaded",
		"overdue", len(sum.Overdue), "due_today", len(sum.DueToday), "completed_today", sum.CompletedToday)
	return sum, errors.Join(errs...)
}

func (s *Source) listTasks(ctx context.Context, listID string) ([]*gtasks.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var out []*gtasks.Task
	err := s.svc.Tasks.List(listID).
		MaxResults(pageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *gtasks.Tasks) error {
			out = append(out, resp.Items...)
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

func classify(sum *model.TaskSummary, t model.Task, today time.Time) {
	if t.Status == "completed" {
		if t.CompletedAt != nil && calendar.SameDay(*t.CompletedAt, today) {
			sum.CompletedToday++
		}
		return
	}
	if t.DueDate == nil {
		return
	}
	switch due := calendar.StartOfDay(*t.DueDate); {
	case due.Before(today):
		sum.Overdue = append(sum.Overdue, t)
	case due.Equal(today):
		sum.DueToday = append(sum.DueToday, t)
	}
}

// toTask maps an API task. Google stores only the date part of "due" (as
// midnight UTC), so it is re-anchored to that calendar date in loc.
func toTask(it *gtasks.Task, loc *time.Location) model.Task {
	title, prio := parsePriority(it.Title)
	t := model.Task{
		ID:       it.Id,
		Title:    title,
		Priority: prio,
		Status:   it.Status,
		SourceID: SourceID,
	}
	if due, err := time.Parse(time.RFC3339, it.Due); err == nil {
		y, m, d := due.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		t.DueDate = &day
	}
	if it.Completed != nil {
		if done, err := time.Parse(time.RFC3339, *it.Completed); err == nil {
			done = done.In(loc)
			t.CompletedAt = &done
		}
	}
	return t
}

// parsePriority strips a leading "!!" (urgent) or "!" (high) marker.
func parsePriority(title string) (string, model.Priority) {
	trimmed := strings.TrimSpace(title)
	switch {
	case strings.HasPrefix(trimmed, "!!"):
		return strings.TrimSpace(trimmed[2:]), model.PriorityUrgent
	case strings.HasPrefix(trimmed, "!"):
		return strings.TrimSpace(trimmed[1:]), model.PriorityHigh
	default:
		return trimmed, model.PriorityMedium
	}
}

func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("tasks: request timed out: %w", err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuth, gerr.Message)
		case http.StatusNotFound:
			return ErrNotFound
		}
	}
	return err
}
