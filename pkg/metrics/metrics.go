// Package metrics exposes engine counters and histograms on an
// injectable prometheus registerer so tests can use a fresh one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	RoundsTotal        *prometheus.CounterVec
	FallbacksTotal     prometheus.Counter
	InvocationDuration *prometheus.HistogramVec
	RejectionsTotal    *prometheus.CounterVec
}

// New registers the engine collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RoundsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quorum",
			Name:      "rounds_total",
			Help:      "Completed rounds by query type.",
		}, []string{"query_type"}),
		FallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "quorum",
			Name:      "fallbacks_total",
			Help:      "Rounds that degraded to the fallback answer.",
		}),
		InvocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quorum",
			Name:      "invocation_duration_seconds",
			Help:      "Backend invocation wall-clock time by terminal state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "state"}),
		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quorum",
			Name:      "rejections_total",
			Help:      "Validator rejections by reason.",
		}, []string{"reason"}),
	}
}
