package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	buildDuration   *prom.HistogramVec
	buildOutcome    *prom.CounterVec
	buildWarnings   *prom.HistogramVec
	publishOutcome  *prom.CounterVec
	publishDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docpages",
			Name:      "build_duration_seconds",
			Help:      "Duration of documentation builder runs",
			Buckets:   prom.DefBuckets,
		}, []string{"target"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpages",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"target", "outcome"})
		pr.buildWarnings = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docpages",
			Name:      "build_warnings",
			Help:      "Builder warnings per run",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}, []string{"target"})
		pr.publishOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpages",
			Name:      "publish_outcomes_total",
			Help:      "Publish outcomes by final status",
		}, []string{"channel", "outcome"})
		pr.publishDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docpages",
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish operations",
			Buckets:   prom.DefBuckets,
		}, []string{"channel"})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.buildWarnings, pr.publishOutcome, pr.publishDuration)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(target string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(target, outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(target, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveBuildWarnings(target string, n int) {
	if p == nil || p.buildWarnings == nil {
		return
	}
	p.buildWarnings.WithLabelValues(target).Observe(float64(n))
}

func (p *PrometheusRecorder) IncPublishOutcome(channel, outcome string) {
	if p == nil || p.publishOutcome == nil {
		return
	}
	p.publishOutcome.WithLabelValues(channel, outcome).Inc()
}

func (p *PrometheusRecorder) ObservePublishDuration(channel string, d time.Duration) {
	if p == nil || p.publishDuration == nil {
		return
	}
	p.publishDuration.WithLabelValues(channel).Observe(d.Seconds())
}
