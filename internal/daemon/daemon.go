// Package daemon runs periodic documentation builds: a gocron schedule
// triggers builds, results land in the history store and metrics, and an
// optional channel publish plus NATS event follows each run.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/history"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
	"git.home.luguber.info/inful/docpages/internal/publish"
	"git.home.luguber.info/inful/docpages/internal/sphinx"
)

// BuildFunc runs one documentation build and reports its result.
type BuildFunc func(ctx context.Context) (*sphinx.Result, error)

// PublishFunc publishes the built site on the given channel.
type PublishFunc func(ctx context.Context, ch config.Channel) (*publish.Summary, error)

// Daemon schedules periodic builds and optional publishes.
type Daemon struct {
	mu  sync.RWMutex
	cfg *config.Config

	build    BuildFunc
	publish  PublishFunc
	store    history.Store
	recorder metrics.Recorder
	events   *EventPublisher

	configPath     string
	metricsHandler http.Handler
}

// New assembles a daemon. store and recorder may be nil.
func New(cfg *config.Config, build BuildFunc, pub PublishFunc, store history.Store, recorder metrics.Recorder) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if build == nil {
		return nil, fmt.Errorf("build function is required")
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Daemon{
		cfg:      cfg,
		build:    build,
		publish:  pub,
		store:    store,
		recorder: recorder,
	}, nil
}

// WithEvents attaches a NATS event publisher.
func (d *Daemon) WithEvents(p *EventPublisher) *Daemon { d.events = p; return d }

// WithMetricsHandler attaches the handler served at /metrics.
func (d *Daemon) WithMetricsHandler(h http.Handler) *Daemon { d.metricsHandler = h; return d }

// WithConfigPath enables config-file watching and live interval reload.
func (d *Daemon) WithConfigPath(path string) *Daemon { d.configPath = path; return d }

func (d *Daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Run blocks executing the schedule until the context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	interval := d.config().DaemonBuildInterval()
	if interval <= 0 {
		return fmt.Errorf("invalid daemon build interval: %q", d.config().Daemon.BuildInterval)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	job, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { d.Tick(ctx) }),
		gocron.WithName("periodic-build"),
	)
	if err != nil {
		return fmt.Errorf("schedule periodic build: %w", err)
	}

	slog.Info("Daemon started",
		logfields.ScheduleID(job.ID().String()),
		slog.Duration("interval", interval),
		logfields.Channel(d.config().Daemon.PublishChannel))

	metricsSrv := d.startMetricsServer()
	scheduler.Start()

	reload := make(chan struct{}, 1)
	if d.configPath != "" {
		go watchConfig(ctx, d.configPath, reload)
	}

	for {
		select {
		case <-ctx.Done():
			return d.shutdown(scheduler, metricsSrv)
		case <-reload:
			interval = d.handleReload(scheduler, job, interval)
		}
	}
}

func (d *Daemon) shutdown(scheduler gocron.Scheduler, metricsSrv *http.Server) error {
	slog.Info("Shutting down daemon...")
	if err := scheduler.Shutdown(); err != nil {
		slog.Warn("scheduler shutdown error", logfields.Error(err))
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", logfields.Error(err))
		}
	}
	d.events.Close()
	return nil
}

// handleReload re-reads the config file and applies the new build interval
// to the running schedule. Invalid configs are logged and ignored.
func (d *Daemon) handleReload(scheduler gocron.Scheduler, job gocron.Job, current time.Duration) time.Duration {
	fresh, err := config.Load(d.configPath)
	if err != nil {
		slog.Warn("config reload failed", logfields.Error(err))
		return current
	}
	if err := fresh.Validate(); err != nil {
		slog.Warn("config reload rejected", logfields.Error(err))
		return current
	}

	d.mu.Lock()
	d.cfg = fresh
	d.mu.Unlock()

	next := fresh.DaemonBuildInterval()
	if next <= 0 || next == current {
		slog.Info("Configuration reloaded")
		return current
	}

	ctx := context.Background()
	if _, err := scheduler.Update(
		job.ID(),
		gocron.DurationJob(next),
		gocron.NewTask(func() { d.Tick(ctx) }),
		gocron.WithName("periodic-build"),
	); err != nil {
		slog.Warn("schedule update failed", logfields.Error(err))
		return current
	}

	slog.Info("Configuration reloaded, build interval updated",
		slog.Duration("interval", next))
	return next
}

// startMetricsServer serves /metrics when an address and handler are configured.
func (d *Daemon) startMetricsServer() *http.Server {
	addr := d.config().Daemon.MetricsAddr
	if addr == "" || d.metricsHandler == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metricsHandler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Metrics endpoint listening", logfields.URL(addr+"/metrics"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", logfields.Error(err))
		}
	}()
	return srv
}

// Tick executes one scheduled cycle: build, record, then publish when a
// channel is configured and the build succeeded.
func (d *Daemon) Tick(ctx context.Context) {
	cfg := d.config()

	result, buildErr := d.build(ctx)
	d.recordBuild(ctx, cfg, result, buildErr)

	ev := &BuildEvent{
		Project: cfg.Project.Name,
		Outcome: string(history.OutcomeSuccess),
	}
	if result != nil {
		ev.Target = result.Target
		ev.Warnings = result.Warnings
		ev.DurationMS = result.Duration.Milliseconds()
	}
	if buildErr != nil {
		ev.Outcome = string(history.OutcomeFailed)
		ev.Error = buildErr.Error()
	}

	if buildErr == nil && cfg.Daemon.PublishChannel != "" && d.publish != nil {
		ch := config.Channel(cfg.Daemon.PublishChannel)
		start := time.Now()
		summary, pubErr := d.publish(ctx, ch)
		d.recordPublish(ctx, ch, summary, pubErr, time.Since(start))
		if pubErr != nil {
			ev.Outcome = string(history.OutcomeFailed)
			ev.Error = pubErr.Error()
		} else {
			ev.Channel = string(ch)
			if summary != nil {
				ev.Commit = summary.Commit
			}
		}
	}

	if err := d.events.Publish(ctx, ev); err != nil {
		slog.Warn("event publish failed", logfields.Error(err))
	}
}

func (d *Daemon) recordBuild(ctx context.Context, cfg *config.Config, result *sphinx.Result, buildErr error) {
	rec := history.NewRecord(history.KindBuild, cfg.Builder.DefaultTarget)
	rec.Outcome = history.OutcomeSuccess
	if result != nil {
		rec.Target = result.Target
		rec.Warnings = result.Warnings
		rec.Duration = result.Duration
		d.recorder.ObserveBuildDuration(result.Target, result.Duration)
		d.recorder.ObserveBuildWarnings(result.Target, result.Warnings)
	}
	if buildErr != nil {
		rec.Outcome = history.OutcomeFailed
		rec.Detail = buildErr.Error()
		slog.Error("Scheduled build failed", logfields.Error(buildErr))
	} else {
		slog.Info("Scheduled build finished",
			logfields.Target(rec.Target),
			logfields.Warnings(rec.Warnings),
			logfields.DurationMS(float64(rec.Duration.Milliseconds())))
	}
	d.recorder.IncBuildOutcome(rec.Target, string(rec.Outcome))
	d.append(ctx, rec)
}

func (d *Daemon) recordPublish(ctx context.Context, ch config.Channel, summary *publish.Summary, pubErr error, dur time.Duration) {
	rec := history.NewRecord(history.KindPublish, string(ch))
	rec.Duration = dur
	switch {
	case pubErr != nil:
		rec.Outcome = history.OutcomeFailed
		rec.Detail = pubErr.Error()
		slog.Error("Scheduled publish failed", logfields.Channel(string(ch)), logfields.Error(pubErr))
	case summary != nil && summary.Skipped:
		rec.Outcome = history.OutcomeSkipped
		slog.Info("Scheduled publish skipped, site unchanged", logfields.Channel(string(ch)))
	default:
		rec.Outcome = history.OutcomeSuccess
		if summary != nil {
			rec.Detail = summary.Commit
		}
		slog.Info("Scheduled publish finished",
			logfields.Channel(string(ch)),
			logfields.Commit(rec.Detail))
	}
	d.recorder.IncPublishOutcome(string(ch), string(rec.Outcome))
	d.recorder.ObservePublishDuration(string(ch), dur)
	d.append(ctx, rec)
}

func (d *Daemon) append(ctx context.Context, rec *history.Record) {
	if d.store == nil {
		return
	}
	if err := d.store.Append(ctx, rec); err != nil {
		slog.Warn("history append failed", logfields.Error(err))
	}
}
