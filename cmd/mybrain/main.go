package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"mybrain/internal/api"
	"mybrain/internal/calendar"
	"mybrain/internal/capture"
	"mybrain/internal/config"
	"mybrain/internal/dashboard"
	"mybrain/internal/ics"
	appLog "mybrain/internal/log"
	"mybrain/internal/tasks"
	"mybrain/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	once       bool
	snapshot   bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("mybrain failed", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	appLog.Info("mybrain starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	level, _ := appLog.ParseLevel(conf.LogLevel)
	appLog.SetLevel(level)

	loc, _ := conf.Location()
	weekStart, _ := conf.Weekday()

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"api", conf.API.BaseURL,
		"ics_count", len(conf.ICS),
		"google_tasks", conf.GoogleTasks.Enabled,
		"snapshot", conf.Snapshot.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildDashboard(ctx, conf, loc)
	if err != nil {
		return err
	}

	if flags.once {
		return runOnce(ctx, svc)
	}

	srv, err := web.NewServer(web.Options{
		Config:      conf,
		Backend:     svc,
		Location:    loc,
		WeekStart:   weekStart,
		PreviewPath: previewPath(conf),
	})
	if err != nil {
		return fmt.Errorf("init web server: %w", err)
	}

	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("HTTP server listening", "addr", "http://"+ln.Addr().String())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if flags.snapshot {
		err := takeSnapshot(ctx, conf, ln.Addr().String())
		shutdown(httpSrv)
		return err
	}

	if _, err := svc.Refresh(ctx); err != nil {
		appLog.Warn("initial dashboard refresh incomplete", "reason", err)
	}

	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		if _, err := svc.Refresh(ctx); err != nil {
			appLog.Warn("dashboard refresh incomplete", "reason", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	if conf.Snapshot.Enabled {
		addr := ln.Addr().String()
		if _, err := sched.AddFunc(conf.Snapshot.Refresh, func() {
			if err := takeSnapshot(ctx, conf, addr); err != nil {
				appLog.Error("calendar snapshot failed", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule snapshot: %w", err)
		}
	}
	sched.Start()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-serveErr:
		if err != nil {
			appLog.Error("HTTP server stopped", err)
		}
	}

	<-sched.Stop().Done()
	shutdown(httpSrv)
	appLog.Info("mybrain exiting")
	return nil
}

func buildDashboard(ctx context.Context, conf *config.Config, loc *time.Location) (*dashboard.Service, error) {
	client, err := api.NewClient(api.Options{
		BaseURL: conf.API.BaseURL,
		Token:   conf.API.Token,
		Timeout: conf.API.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	src := dashboard.Sources{
		Events:   []dashboard.EventSource{client},
		Tasks:    []dashboard.TaskSource{client},
		Messages: client,
	}

	if len(conf.ICS) > 0 {
		feeds := make([]ics.Feed, 0, len(conf.ICS))
		for _, f := range conf.ICS {
			feeds = append(feeds, ics.Feed{ID: f.ID, Name: f.Name, URL: f.URL})
		}
		src.Events = append(src.Events, ics.NewSource(ics.NewFetcher(conf.CacheDir, nil), feeds, loc))
	}

	if conf.GoogleTasks.Enabled {
		gt, err := tasks.New(ctx, conf.GoogleTasks.Dir, conf.GoogleTasks.Lists)
		if err != nil {
			// The rest of the dashboard still works without it.
			appLog.Error("google tasks disabled", err, "dir", conf.GoogleTasks.Dir)
		} else {
			src.Tasks = append(src.Tasks, dashboard.TaskSourceFunc(gt.Load))
		}
	}

	return dashboard.New(src, calendar.Clock(time.Now), loc), nil
}

// runOnce refreshes the dashboard and prints the focus snapshot as JSON.
func runOnce(ctx context.Context, svc *dashboard.Service) error {
	snap, err := svc.Refresh(ctx)
	if err != nil && snap.UpdatedAt.IsZero() {
		return err
	}
	if err != nil {
		appLog.Warn("dashboard refresh incomplete", "reason", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func takeSnapshot(ctx context.Context, conf *config.Config, addr string) error {
	opts := capture.Options{
		URL:        "http://" + addr + "/calendar",
		OutputPath: conf.Snapshot.Output,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	return capture.Snapshot(ctx, opts)
}

func previewPath(conf *config.Config) string {
	if !conf.Snapshot.Enabled {
		return ""
	}
	return conf.Snapshot.Output
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/mybrain/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.once, "once", false, "Refresh the dashboard once, print the focus snapshot and exit")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Serve, write one calendar PNG snapshot and exit")

	flag.Parse()

	return cfg
}
