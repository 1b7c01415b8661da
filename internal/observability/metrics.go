package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scam_detector"

// Metrics holds the pipeline's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	analyses         *prometheus.CounterVec
	detectorFailures *prometheus.CounterVec
	remoteFailures   prometheus.Counter
	alerts           *prometheus.CounterVec
	pipeline         prometheus.Histogram
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed pipeline runs by risk level.",
		}, []string{"level"}),
		detectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_failures_total",
			Help:      "Detector runs replaced by a default result.",
		}, []string{"detector"}),
		remoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_failures_total",
			Help:      "Remote scorer calls that failed or timed out.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Alerts handed to publishers, by outcome.",
		}, []string{"outcome"}),
		pipeline: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_seconds",
			Help:      "Time from page-ready to assessment.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.analyses,
		m.detectorFailures,
		m.remoteFailures,
		m.alerts,
		m.pipeline,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AnalysisCompleted(level string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(level).Inc()
	m.pipeline.Observe(elapsed.Seconds())
}

func (m *Metrics) DetectorFailed(detector string) {
	if m == nil {
		return
	}
	m.detectorFailures.WithLabelValues(detector).Inc()
}

func (m *Metrics) RemoteFailed() {
	if m == nil {
		return
	}
	m.remoteFailures.Inc()
}

func (m *Metrics) AlertPublished(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.alerts.WithLabelValues(outcome).Inc()
}
