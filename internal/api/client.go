// Package api is the client for the myBrain REST backend, which owns all
// events, tasks and messages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "mybrain/internal/log"
	"mybrain/internal/model"
)

// DefaultTimeout bounds a single API call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// isoLayout matches JavaScript's Date.toISOString, which the backend expects.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrNotFound     = errors.New("api: not found")
)

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "api: " + e.Status
	}
	return fmt.Sprintf("api: %s: %s", e.Status, e.Body)
}

type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	base    *url.URL
	token   string
	timeout time.Duration
	http    *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api: base URL is empty")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported scheme %q", base.Scheme)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		base:    base,
		token:   opts.Token,
		timeout: opts.Timeout,
		http:    hc,
	}, nil
}

// Events returns the (already expanded) events overlapping [start, end).
func (c *Client) Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	q := url.Values{}
	q.Set("startDate", FormatISO(start))
	q.Set("endDate", FormatISO(end))

	var events []model.CalendarEvent
	if err := c.getJSON(ctx, "events", q, &events); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Normalize()
	}
	return events, nil
}

// Tasks returns the dashboard task buckets for now's calendar day.
func (c *Client) Tasks(ctx context.Context, now time.Time) (model.TaskSummary, error) {
	q := url.Values{}
	q.Set("date", now.Format("2006-01-02"))
	q.Set("tz", now.Location().String())

	var out model.TaskSummary
	if err := c.getJSON(ctx, "tasks/dashboard", q, &out); err != nil {
		return model.TaskSummary{}, err
	}
	return out, nil
}

// Messages returns the unread message summary.
func (c *Client) Messages(ctx context.Context) (model.MessageSummary, error) {
	var out model.MessageSummary
	if err := c.getJSON(ctx, "messages/unread", nil, &out); err != nil {
		return model.MessageSummary{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base.JoinPath(path)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	appLog.Debug("api request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s: %w", path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// FormatISO renders t the way the backend's range query expects.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}
