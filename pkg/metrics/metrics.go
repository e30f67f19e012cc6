package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pairprog"

// Recorder collects backend call and diagnostic metrics.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	findings        *prometheus.HistogramVec
	dropped         prometheus.Counter
	staleResponses  prometheus.Counter
	documentsActive prometheus.Gauge
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend analysis calls by protocol and outcome",
		}, []string{"protocol", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend analysis calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"protocol"}),
		findings: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "findings_per_analysis",
			Help:      "Number of findings produced by one analysis",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}, []string{"language"}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_dropped_total",
			Help:      "Suggestions discarded because their line was out of range",
		}),
		staleResponses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Query responses discarded because a newer request superseded them",
		}),
		documentsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents_tracked",
			Help:      "Documents tracked by the diagnostic store",
		}),
	}
}

// ObserveRequest records one backend call.
func (r *Recorder) ObserveRequest(protocol, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(protocol, outcome).Inc()
	r.latency.WithLabelValues(protocol).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveFindings(language string, n int) {
	if r == nil {
		return
	}
	r.findings.WithLabelValues(language).Observe(float64(n))
}

func (r *Recorder) AddDropped(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.dropped.Add(float64(n))
}

func (r *Recorder) IncStale() {
	if r == nil {
		return
	}
	r.staleResponses.Inc()
}

func (r *Recorder) SetDocuments(n int) {
	if r == nil {
		return
	}
	r.documentsActive.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler exposes the Prometheus metrics endpoint for this recorder.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
