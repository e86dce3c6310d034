package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnoreEvent(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"docs/index.md", false},
		{"docs/.index.md.swp", true},
		{"docs/index.md~", true},
		{"docs/.#index.md", true},
		{"docs/#index.md#", true},
		{"docs/Thumbs.db", true},
		{"docs/.git", true},
		{"docs/conf.py", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, shouldIgnoreEvent(tc.path), tc.path)
	}
}

func TestDebouncerCoalescesBursts(t *testing.T) {
	rebuildReq, trigger := newDebouncer(30 * time.Millisecond)

	for i := 0; i < 10; i++ {
		trigger()
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-rebuildReq:
	case <-time.After(time.Second):
		t.Fatal("expected a rebuild request")
	}

	// The burst must have collapsed into a single request.
	select {
	case <-rebuildReq:
		t.Fatal("unexpected second rebuild request")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRebuildWorkerSingleFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var builds atomic.Int32
	inBuild := make(chan struct{})
	release := make(chan struct{})

	s := New("src", "site", 0, time.Millisecond, func(context.Context) error {
		builds.Add(1)
		if builds.Load() == 1 {
			close(inBuild)
			<-release
		}
		return nil
	})

	rebuildReq := make(chan struct{}, 1)
	s.startRebuildWorker(ctx, rebuildReq)

	rebuildReq <- struct{}{}
	<-inBuild

	// Requests arriving mid-build coalesce into one follow-up build. The
	// worker is not draining the channel while building, so the sends must
	// not block; the second one drops against the full buffer.
	for i := 0; i < 2; i++ {
		select {
		case rebuildReq <- struct{}{}:
		default:
		}
	}
	close(release)

	require.Eventually(t, func() bool { return builds.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), builds.Load())
}

func TestDebounceTimerFiringAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var builds atomic.Int32
	s := New("src", "site", 0, time.Millisecond, func(context.Context) error {
		builds.Add(1)
		return nil
	})

	rebuildReq, trigger := newDebouncer(20 * time.Millisecond)
	s.startRebuildWorker(ctx, rebuildReq)

	// A change lands inside the debounce window, then shutdown begins
	// before the timer fires. The late send must not panic; it parks in
	// the buffered channel with no worker left to drain it.
	trigger()
	cancel()

	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, builds.Load(), int32(1))
}

func TestRunShutsDownCleanlyDuringDebounce(t *testing.T) {
	srcDir := t.TempDir()
	siteDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(srcDir, siteDir, 0, 50*time.Millisecond, func(context.Context) error { return nil })
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Let the watcher come up, then land a change and cancel inside the
	// debounce window so the timer fires after shutdown.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "index.md"), []byte("# hi\n"), 0o644))
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("preview server did not shut down")
	}

	// The pending debounce timer fires here; a panic would crash the test.
	time.Sleep(100 * time.Millisecond)
}

func TestHandlerServesSiteAndStatus(t *testing.T) {
	siteDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "index.html"), []byte("<html>docs</html>"), 0o644))

	s := New("src", siteDir, 0, 0, func(context.Context) error { return nil })
	ts := httptest.NewServer(s.handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No build has succeeded yet.
	resp, err = http.Get(ts.URL + "/__status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.status.setSuccess()
	resp, err = http.Get(ts.URL + "/__status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.status.setError(assert.AnError)
	resp, err = http.Get(ts.URL + "/__status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestNewDefaultsDebounce(t *testing.T) {
	s := New("src", "site", 8000, 0, nil)
	assert.Equal(t, 300*time.Millisecond, s.debounce)
}
