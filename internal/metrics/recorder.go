package metrics

import "time"

// Recorder defines observability hooks for build and publish metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe for nil receivers when using the NoopRecorder (allowing
// optional injection).
type Recorder interface {
	ObserveBuildDuration(target string, d time.Duration)
	IncBuildOutcome(target, outcome string) // outcome: success|failed
	ObserveBuildWarnings(target string, n int)
	IncPublishOutcome(channel, outcome string) // outcome: success|failed|skipped
	ObservePublishDuration(channel string, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration)   {}
func (NoopRecorder) IncBuildOutcome(string, string)               {}
func (NoopRecorder) ObserveBuildWarnings(string, int)             {}
func (NoopRecorder) IncPublishOutcome(string, string)             {}
func (NoopRecorder) ObservePublishDuration(string, time.Duration) {}
