package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // Location() must work on hosts without zoneinfo

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "mybrain/internal/log"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// ID tags imported events and names the feed in logs.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// APIConfig points at the backend that owns events, tasks and messages.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	Token          string `yaml:"token" json:"-"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// GoogleTasksConfig enables the Google Tasks source. Dir holds
// oauth_client.json and token.json.
type GoogleTasksConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Dir     string   `yaml:"dir" json:"dir"`
	Lists   []string `yaml:"lists" json:"lists"`
}

// SnapshotConfig controls the headless-browser PNG of the calendar page.
type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Refresh string `yaml:"refresh" json:"refresh"`
	Output  string `yaml:"output" json:"output"`
	Width   int    `yaml:"width" json:"width"`
	Height  int    `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone calendar days are computed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is the dashboard refresh schedule (standard 5-field cron).
	RefreshCron string `yaml:"refresh" json:"refresh"`

	API APIConfig `yaml:"api" json:"api"`

	// ICS is the list of subscribed ICS sources.
	ICS      []ICSConfig `yaml:"ics" json:"ics"`
	CacheDir string      `yaml:"cache_dir" json:"cache_dir"`

	GoogleTasks GoogleTasksConfig `yaml:"google_tasks" json:"google_tasks"`
	Snapshot    SnapshotConfig    `yaml:"snapshot" json:"snapshot"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "UTC"
	defaultWeekStart   = "sunday"
	defaultLogLevel    = "info"
	defaultRefresh     = "*/5 * * * *"
	defaultAPITimeout  = 10
	defaultCacheDir    = "/var/lib/mybrain/ics-cache"
	defaultSnapRefresh = "*/15 * * * *"
	defaultSnapOutput  = "/var/lib/mybrain/calendar.png"
	defaultSnapWidth   = 1200
	defaultSnapHeight  = 900
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		API: APIConfig{BaseURL: "http://127.0.0.1:5000/api"},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart == "" {
		c.WeekStart = defaultWeekStart
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultAPITimeout
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Snapshot.Refresh == "" {
		c.Snapshot.Refresh = defaultSnapRefresh
	}
	if c.Snapshot.Output == "" {
		c.Snapshot.Output = defaultSnapOutput
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = defaultSnapWidth
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = defaultSnapHeight
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Weekday(); err != nil {
		errs = append(errs, err)
	}
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("config: unknown log_level %q", c.LogLevel))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err))
	}
	if c.Snapshot.Enabled {
		if _, err := cron.ParseStandard(c.Snapshot.Refresh); err != nil {
			errs = append(errs, fmt.Errorf("config: snapshot.refresh %q: %w", c.Snapshot.Refresh, err))
		}
	}

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("config: api.base_url is required"))
	} else if err := checkHTTPURL(c.API.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("config: api.base_url: %w", err))
	}

	seen := make(map[string]bool, len(c.ICS))
	for _, feed := range c.ICS {
		if seen[feed.ID] {
			errs = append(errs, fmt.Errorf("config: duplicate ics id %q", feed.ID))
		}
		seen[feed.ID] = true
		if err := checkHTTPURL(feed.URL); err != nil {
			errs = append(errs, fmt.Errorf("config: ics %q: %w", feed.ID, err))
		}
	}

	if c.GoogleTasks.Enabled && c.GoogleTasks.Dir == "" {
		errs = append(errs, errors.New("config: google_tasks.dir is required when enabled"))
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		errs = append(errs, errors.New("config: basic_auth needs both username and password"))
	}
	return errors.Join(errs...)
}

// Location loads the configured IANA zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Weekday maps week_start to the first column of week and month grids.
func (c *Config) Weekday() (time.Weekday, error) {
	switch c.WeekStart {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	}
	return time.Sunday, fmt.Errorf("config: week_start %q must be sunday or monday", c.WeekStart)
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	return nil
}

// Load reads configuration from the YAML file at path. On first run the
// file does not exist yet: a default config is written with 0600
// permissions and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller may still run with the defaults.
				return cfg, err
			}
			appLog.Info("default config written", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".mybrain-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
