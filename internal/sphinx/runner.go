package sphinx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// Result summarizes a single builder invocation.
type Result struct {
	Target    string
	OutputDir string
	Warnings  int
	Errors    int
	Duration  time.Duration
}

// Runner invokes the external documentation builder.
type Runner struct {
	cfg     config.BuilderConfig
	root    string
	timeout time.Duration
	// stdout sink for builder output; defaults to os.Stdout.
	out io.Writer
}

// NewRunner creates a runner for the given project root and builder config.
func NewRunner(root string, cfg config.BuilderConfig, timeout time.Duration) *Runner {
	if root == "" {
		root = "."
	}
	return &Runner{cfg: cfg, root: root, timeout: timeout, out: os.Stdout}
}

// WithOutput redirects builder output (fluent helper, used by tests).
func (r *Runner) WithOutput(w io.Writer) *Runner { r.out = w; return r }

// SourceDir returns the absolute documentation source directory.
func (r *Runner) SourceDir() string { return filepath.Join(r.root, r.cfg.SourceDir) }

// BuildDir returns the absolute build output directory.
func (r *Runner) BuildDir() string { return filepath.Join(r.root, r.cfg.BuildDir) }

// HTMLDir returns the directory holding rendered HTML after an html build.
func (r *Runner) HTMLDir() string { return filepath.Join(r.BuildDir(), "html") }

// Build runs the builder for the given target. The target is forwarded
// verbatim, matching the original wrapper's behavior for unrecognized modes.
func (r *Runner) Build(ctx context.Context, target string) (*Result, error) {
	if target == "" {
		target = r.cfg.DefaultTarget
	}

	path, err := Locate(r.cfg.Command)
	if err != nil {
		return nil, err
	}

	if st, err := os.Stat(r.SourceDir()); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("source directory not found: %s", r.SourceDir())
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := append([]string{"-M", target, r.cfg.SourceDir, r.cfg.BuildDir}, r.cfg.Opts...)
	slog.Info("Running documentation builder",
		logfields.Target(target),
		logfields.Path(path),
		slog.String("args", strings.Join(args, " ")))

	// #nosec G204 -- path resolved via Locate, args come from config
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("builder stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start builder: %w", err)
	}

	warnings, errs := r.scanOutput(stdout)
	runErr := cmd.Wait()

	result := &Result{
		Target:    target,
		OutputDir: filepath.Join(r.BuildDir(), target),
		Warnings:  warnings,
		Errors:    errs,
		Duration:  time.Since(start),
	}

	if runErr != nil {
		return result, fmt.Errorf("builder failed for target %q: %w", target, runErr)
	}
	if r.cfg.FailOnWarning && warnings > 0 {
		return result, fmt.Errorf("builder reported %d warning(s) and fail_on_warning is set", warnings)
	}

	slog.Info("Builder finished",
		logfields.Target(target),
		logfields.Warnings(warnings),
		logfields.DurationMS(float64(result.Duration.Milliseconds())),
		logfields.Dir(result.OutputDir))
	return result, nil
}

// scanOutput tees builder output to the runner's sink while counting
// warning and error lines.
func (r *Runner) scanOutput(src io.Reader) (warnings, errs int) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		w, e := ClassifyLine(line)
		warnings += w
		errs += e
		fmt.Fprintln(r.out, line)
	}
	return warnings, errs
}

// ClassifyLine counts warning/error markers in a single builder output line.
// Sphinx prefixes diagnostics with "WARNING:" / "ERROR:" (possibly after a
// file location) and severe failures with "CRITICAL:".
func ClassifyLine(line string) (warnings, errs int) {
	switch {
	case strings.Contains(line, "ERROR:"), strings.Contains(line, "CRITICAL:"):
		return 0, 1
	case strings.Contains(line, "WARNING:"):
		return 1, 0
	}
	return 0, 0
}

// Clean removes the build directory, mirroring the builder's clean target
// without requiring the builder to be installed.
func (r *Runner) Clean() error {
	dir := r.BuildDir()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove build directory %s: %w", dir, err)
	}
	slog.Info("Removed build directory", logfields.Dir(dir))
	return nil
}
