package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// watchConfig signals reload whenever the config file changes. The parent
// directory is watched because editors replace files on save.
func watchConfig(ctx context.Context, path string, reload chan<- struct{}) {
	abs, err := filepath.Abs(path)
	if err != nil {
		slog.Warn("config watch disabled", logfields.Error(err))
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config watch disabled", logfields.Error(err))
		return
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		slog.Warn("config watch disabled", logfields.Path(abs), logfields.Error(err))
		return
	}
	slog.Debug("Watching config file", logfields.Path(abs))

	var mu sync.Mutex
	var timer *time.Timer
	notify := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(500*time.Millisecond, func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			notify()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", logfields.Error(err))
		}
	}
}
