// Package preview serves the built HTML locally and rebuilds it whenever
// the documentation sources change.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// RebuildFunc runs one documentation build.
type RebuildFunc func(ctx context.Context) error

// Server watches the source directory and serves the built site.
type Server struct {
	sourceDir string
	siteDir   string
	port      int
	debounce  time.Duration
	rebuild   RebuildFunc

	status buildStatus
}

// New creates a preview server. rebuild is invoked for the initial build and
// after every (debounced) source change.
func New(sourceDir, siteDir string, port int, debounce time.Duration, rebuild RebuildFunc) *Server {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Server{
		sourceDir: sourceDir,
		siteDir:   siteDir,
		port:      port,
		debounce:  debounce,
		rebuild:   rebuild,
	}
}

// buildStatus tracks the current build state for the status endpoint.
type buildStatus struct {
	mu           sync.RWMutex
	lastError    error
	hasGoodBuild bool
}

func (bs *buildStatus) setError(err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = err
}

func (bs *buildStatus) setSuccess() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = nil
	bs.hasGoodBuild = true
}

func (bs *buildStatus) snapshot() (err error, hasGoodBuild bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.lastError, bs.hasGoodBuild
}

// Run blocks serving the preview until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	absSource, err := filepath.Abs(s.sourceDir)
	if err != nil {
		return fmt.Errorf("resolve source dir: %w", err)
	}
	if st, statErr := os.Stat(absSource); statErr != nil || !st.IsDir() {
		return fmt.Errorf("source dir not found or not a directory: %s", absSource)
	}

	// Initial build.
	if err := s.rebuild(ctx); err != nil {
		slog.Error("initial build failed", logfields.Error(err))
		s.status.setError(err)
	} else {
		s.status.setSuccess()
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("preview server error", logfields.Error(err))
		}
	}()
	slog.Info("Preview server listening",
		logfields.Port(s.port),
		logfields.URL(fmt.Sprintf("http://localhost:%d", s.port)))

	watcher, err := setupFileWatcher(absSource)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	rebuildReq, trigger := newDebouncer(s.debounce)
	s.startRebuildWorker(ctx, rebuildReq)

	return s.runLoop(ctx, watcher, trigger, httpServer)
}

// handler serves the built site plus a small status endpoint.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.siteDir)))
	mux.HandleFunc("/__status", func(w http.ResponseWriter, _ *http.Request) {
		err, good := s.status.snapshot()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		switch {
		case err != nil:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, "build failed: %v\n", err)
		case !good:
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "no successful build yet")
		default:
			fmt.Fprintln(w, "ok")
		}
	})
	return mux
}

// setupFileWatcher creates and configures the filesystem watcher.
func setupFileWatcher(absSource string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := addDirsRecursive(watcher, absSource); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return watcher, nil
}

// newDebouncer creates a rebuild channel and a trigger that coalesces
// bursts of changes within the debounce window.
func newDebouncer(window time.Duration) (chan struct{}, func()) {
	var mu sync.Mutex
	var timer *time.Timer
	rebuildReq := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(window, func() {
			select {
			case rebuildReq <- struct{}{}:
			default:
			}
		})
	}

	return rebuildReq, trigger
}

// startRebuildWorker processes rebuild requests one at a time; a change
// arriving during a rebuild queues exactly one follow-up rebuild.
func (s *Server) startRebuildWorker(ctx context.Context, rebuildReq chan struct{}) {
	var mu sync.Mutex
	running := false
	pending := false

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-rebuildReq:
				mu.Lock()
				if running {
					pending = true
					mu.Unlock()
					continue
				}
				running = true
				mu.Unlock()

				s.processRebuild(ctx)

				mu.Lock()
				running = false
				if pending {
					pending = false
					mu.Unlock()
					select {
					case rebuildReq <- struct{}{}:
					default:
					}
				} else {
					mu.Unlock()
				}
			}
		}
	}()
}

func (s *Server) processRebuild(ctx context.Context) {
	slog.Info("Change detected; rebuilding documentation")
	if err := s.rebuild(ctx); err != nil {
		slog.Warn("rebuild failed", logfields.Error(err))
		s.status.setError(err)
	} else {
		s.status.setSuccess()
	}
}

// runLoop handles filesystem events and graceful shutdown.
func (s *Server) runLoop(ctx context.Context, watcher *fsnotify.Watcher, trigger func(), httpServer *http.Server) error {
	for {
		select {
		case <-ctx.Done():
			return shutdown(httpServer)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleFileEvent(watcher, ev, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

// shutdown stops the HTTP server. The rebuild channel is deliberately left
// open: a debounce timer may still fire after this point, and its buffered
// send must not panic. The worker exits via context cancellation.
func shutdown(httpServer *http.Server) error {
	slog.Info("Shutting down preview server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", logfields.Error(err))
	}
	return nil
}

// handleFileEvent processes a filesystem event and triggers a rebuild if needed.
func handleFileEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if shouldIgnoreEvent(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(watcher, ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	trigger()
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				slog.Warn("watch add failed", logfields.Dir(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	// Hidden files
	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor temp/swap files
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, ".#") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	if base == "Thumbs.db" {
		return true
	}

	return false
}
