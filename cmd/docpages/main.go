package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/daemon"
	apperrors "git.home.luguber.info/inful/docpages/internal/errors"
	"git.home.luguber.info/inful/docpages/internal/history"
	"git.home.luguber.info/inful/docpages/internal/linkcheck"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
	"git.home.luguber.info/inful/docpages/internal/preview"
	"git.home.luguber.info/inful/docpages/internal/publish"
	"git.home.luguber.info/inful/docpages/internal/sources"
	"git.home.luguber.info/inful/docpages/internal/sphinx"
	"git.home.luguber.info/inful/docpages/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docpages.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Target string `arg:"" optional:"" help:"Builder target (html, latexpdf, linkcheck, ...)"`
	} `cmd:"" help:"Run the documentation builder"`

	Publish struct {
		Channel    string `help:"Publishing channel" enum:"stable,dev" default:"stable"`
		Message    string `short:"m" help:"Override the generated commit message"`
		NoPush     bool   `help:"Commit to the publishing branch without pushing"`
		AllowDirty bool   `help:"Publish even with uncommitted changes in the working tree"`
	} `cmd:"" help:"Build the HTML site and publish it to the pages branch"`

	Preview struct {
		Port int `short:"p" help:"Override the preview port"`
	} `cmd:"" help:"Serve the built site locally and rebuild on source changes"`

	Clean struct{} `cmd:"" help:"Remove the build directory"`

	Audit struct{} `cmd:"" help:"Inventory markdown sources: titles, orphans, duplicates"`

	Linkcheck struct{} `cmd:"" help:"Verify internal links in the built HTML site"`

	History struct {
		Limit int `short:"n" help:"Number of records to show"`
	} `cmd:"" help:"List recent build and publish runs"`

	Daemon struct{} `cmd:"" help:"Run periodic builds with metrics and optional publishing"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("docpages"),
		kong.Description("Sphinx documentation build and gh-pages publishing tool."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docpages: %v\n", err)
		os.Exit(apperrors.ExitConfig)
	}
	config.SetupLogger(cfg.Logging, CLI.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch kctx.Command() {
	case "build", "build <target>":
		err = runBuild(ctx, cfg, CLI.Build.Target)
	case "publish":
		err = runPublish(ctx, cfg)
	case "preview":
		err = runPreview(ctx, cfg)
	case "clean":
		err = newRunner(cfg).Clean()
	case "audit":
		err = runAudit(cfg)
	case "linkcheck":
		err = runLinkcheck(cfg)
	case "history":
		err = runHistory(ctx, cfg, CLI.History.Limit)
	case "daemon":
		err = runDaemon(ctx, cfg)
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "version":
		runVersion(ctx, cfg)
	}

	exit(err)
}

// exit maps an error to the process exit status. A missing builder prints
// installation guidance and exits 1, matching the original wrapper.
func exit(err error) {
	if err == nil {
		return
	}
	status := exitStatus(err)
	var nfe *sphinx.NotFoundError
	if errors.As(err, &nfe) {
		fmt.Fprint(os.Stderr, nfe.Guidance())
	} else {
		slog.Error("Command failed", logfields.Error(err))
	}
	os.Exit(status)
}

func exitStatus(err error) int {
	var nfe *sphinx.NotFoundError
	if errors.As(err, &nfe) {
		return apperrors.ExitBuilderMissing
	}
	return apperrors.ExitCode(err)
}

func newRunner(cfg *config.Config) *sphinx.Runner {
	return sphinx.NewRunner(cfg.Project.Root, cfg.Builder, cfg.BuilderTimeout())
}

func openHistory(cfg *config.Config) history.Store {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Warn("history store unavailable", logfields.Error(err))
		return nil
	}
	return store
}

func appendHistory(ctx context.Context, store history.Store, rec *history.Record) {
	if store == nil {
		return
	}
	if err := store.Append(ctx, rec); err != nil {
		slog.Warn("history append failed", logfields.Error(err))
	}
}

func runBuild(ctx context.Context, cfg *config.Config, target string) error {
	runner := newRunner(cfg)
	store := openHistory(cfg)
	defer closeStore(store)

	result, err := runner.Build(ctx, target)

	rec := history.NewRecord(history.KindBuild, cfg.Builder.DefaultTarget)
	rec.Outcome = history.OutcomeSuccess
	if result != nil {
		rec.Target = result.Target
		rec.Warnings = result.Warnings
		rec.Duration = result.Duration
	}
	if err != nil {
		rec.Outcome = history.OutcomeFailed
		rec.Detail = err.Error()
	}
	appendHistory(ctx, store, rec)

	return err
}

func runPublish(ctx context.Context, cfg *config.Config) error {
	cfg.Publish.NoPush = cfg.Publish.NoPush || CLI.Publish.NoPush
	cfg.Publish.AllowDirty = cfg.Publish.AllowDirty || CLI.Publish.AllowDirty
	channel := config.Channel(CLI.Publish.Channel)

	runner := newRunner(cfg)
	store := openHistory(cfg)
	defer closeStore(store)

	if err := runBuildForPublish(ctx, cfg, runner, store); err != nil {
		return err
	}

	publisher := publish.NewPublisher(cfg.Project.Root, cfg.Publish)
	start := time.Now()
	summary, err := publisher.Publish(ctx, publish.Request{
		Channel: channel,
		SiteDir: runner.HTMLDir(),
		Message: CLI.Publish.Message,
	})

	rec := history.NewRecord(history.KindPublish, string(channel))
	rec.Duration = time.Since(start)
	switch {
	case err != nil:
		rec.Outcome = history.OutcomeFailed
		rec.Detail = err.Error()
	case summary.Skipped:
		rec.Outcome = history.OutcomeSkipped
	default:
		rec.Outcome = history.OutcomeSuccess
		rec.Detail = summary.Commit
	}
	appendHistory(ctx, store, rec)

	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryPublish, apperrors.SeverityFatal, "publish failed")
	}
	if summary.Skipped {
		fmt.Println("Site unchanged, nothing to publish.")
		return nil
	}
	fmt.Printf("Published %d files to %s (%s)\n", summary.Files, summary.Branch, summary.Commit)
	if !summary.Pushed {
		fmt.Println("Push skipped; commit is on the local publishing branch only.")
	}
	return nil
}

func runBuildForPublish(ctx context.Context, cfg *config.Config, runner *sphinx.Runner, store history.Store) error {
	result, err := runner.Build(ctx, "html")

	rec := history.NewRecord(history.KindBuild, "html")
	rec.Outcome = history.OutcomeSuccess
	if result != nil {
		rec.Warnings = result.Warnings
		rec.Duration = result.Duration
	}
	if err != nil {
		rec.Outcome = history.OutcomeFailed
		rec.Detail = err.Error()
	}
	appendHistory(ctx, store, rec)

	return err
}

func runPreview(ctx context.Context, cfg *config.Config) error {
	runner := newRunner(cfg)
	port := cfg.Preview.Port
	if CLI.Preview.Port != 0 {
		port = CLI.Preview.Port
	}
	debounce := time.Duration(cfg.Preview.DebounceMS) * time.Millisecond

	srv := preview.New(runner.SourceDir(), runner.HTMLDir(), port, debounce,
		func(ctx context.Context) error {
			_, err := runner.Build(ctx, "html")
			return err
		})
	return srv.Run(ctx)
}

func runAudit(cfg *config.Config) error {
	runner := newRunner(cfg)
	report, err := sources.Scan(runner.SourceDir())
	if err != nil {
		return err
	}

	fmt.Printf("Documents: %d (other sources: %d)\n", len(report.Documents), report.OtherSources)
	for _, doc := range report.Documents {
		fmt.Printf("  %-40s %s\n", doc.Path, doc.Title)
	}
	if len(report.Orphans) > 0 {
		fmt.Printf("\nOrphans (not linked from any document):\n")
		for _, p := range report.Orphans {
			fmt.Printf("  %s\n", p)
		}
	}
	if len(report.DuplicateTitles) > 0 {
		fmt.Printf("\nDuplicate titles:\n")
		for title, paths := range report.DuplicateTitles {
			fmt.Printf("  %q: %v\n", title, paths)
		}
	}
	return nil
}

func runLinkcheck(cfg *config.Config) error {
	runner := newRunner(cfg)
	report, err := linkcheck.NewChecker(runner.HTMLDir()).Check()
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d pages, %d internal links.\n", report.Pages, report.Links)
	if report.OK() {
		return nil
	}
	for _, issue := range report.Issues {
		fmt.Printf("  %s\n", issue)
	}
	return apperrors.New(apperrors.CategoryValidation, apperrors.SeverityError,
		fmt.Sprintf("%d broken internal link(s)", len(report.Issues)))
}

func runHistory(ctx context.Context, cfg *config.Config, limit int) error {
	if limit <= 0 {
		limit = cfg.History.Limit
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer closeStore(store)

	recs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}
	for _, r := range recs {
		detail := r.Detail
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		fmt.Printf("%s  %-7s  %-10s  %-7s  %4dw  %8s  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Kind, r.Target, r.Outcome, r.Warnings,
			r.Duration.Round(time.Millisecond), detail)
	}
	return nil
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	runner := newRunner(cfg)
	store := openHistory(cfg)
	defer closeStore(store)

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	build := func(ctx context.Context) (*sphinx.Result, error) {
		return runner.Build(ctx, "html")
	}
	pub := func(ctx context.Context, ch config.Channel) (*publish.Summary, error) {
		return publish.NewPublisher(cfg.Project.Root, cfg.Publish).Publish(ctx, publish.Request{
			Channel: ch,
			SiteDir: runner.HTMLDir(),
		})
	}

	d, err := daemon.New(cfg, build, pub, store, recorder)
	if err != nil {
		return err
	}
	d.WithMetricsHandler(metrics.HTTPHandler(registry)).WithConfigPath(CLI.Config)

	if cfg.Daemon.Events.Enabled {
		events, err := daemon.NewEventPublisher(cfg.Daemon.Events)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CategoryDaemon, apperrors.SeverityFatal, "event publisher setup failed")
		}
		d.WithEvents(events)
	}

	return d.Run(ctx)
}

func runVersion(ctx context.Context, cfg *config.Config) {
	fmt.Printf("docpages %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	if v := sphinx.DetectVersion(ctx, cfg.Builder.Command); v != "" {
		fmt.Printf("%s %s\n", cfg.Builder.Command, v)
	} else {
		fmt.Printf("%s not found\n", cfg.Builder.Command)
	}
}

func closeStore(store history.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		slog.Warn("history store close failed", logfields.Error(err))
	}
}
