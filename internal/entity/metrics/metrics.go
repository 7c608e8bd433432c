package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the entity resolution module.
type Metrics struct {
	// Resolution outcomes by outcome and match type
	ResolutionOutcome *prometheus.CounterVec

	// Resolution latency including lock waits and store writes
	ResolveLatency prometheus.Histogram

	// Resolver name-to-entity cache hits and misses
	CacheEvents *prometheus.CounterVec

	// Open review cases opened / closed by reason
	ReviewCases *prometheus.CounterVec

	// Merge attempts by result ("merged", "rejected")
	MergeAttempts *prometheus.CounterVec
}

// New creates a Metrics instance with all entity module metrics registered.
func New() *Metrics {
	return &Metrics{
		ResolutionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yeto_entity_resolutions_total",
			Help: "Entity resolution results by outcome and match type",
		}, []string{"outcome", "match_type"}),

		ResolveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "yeto_entity_resolve_duration_seconds",
			Help:    "Duration of a full resolution including lock waits and store writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		CacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yeto_entity_resolver_cache_events_total",
			Help: "Resolver name cache hits and misses",
		}, []string{"result"}), // result: "hit", "miss"

		ReviewCases: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yeto_entity_review_cases_total",
			Help: "Review cases opened and closed by reason",
		}, []string{"event", "reason"}), // event: "opened", "resolved"

		MergeAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yeto_entity_merge_attempts_total",
			Help: "Entity merge attempts by result",
		}, []string{"result"}),
	}
}

// IncrementResolution records one resolution result.
func (m *Metrics) IncrementResolution(outcome, matchType string) {
	if m != nil {
		m.ResolutionOutcome.WithLabelValues(outcome, matchType).Inc()
	}
}

// ObserveResolveLatency records the duration of a resolution call.
func (m *Metrics) ObserveResolveLatency(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}

// RecordCacheHit and RecordCacheMiss track resolver cache effectiveness.
func (m *Metrics) RecordCacheHit() {
	if m != nil {
		m.CacheEvents.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) RecordCacheMiss() {
	if m != nil {
		m.CacheEvents.WithLabelValues("miss").Inc()
	}
}

// IncrementReviewCase records a review case lifecycle event.
func (m *Metrics) IncrementReviewCase(event, reason string) {
	if m != nil {
		m.ReviewCases.WithLabelValues(event, reason).Inc()
	}
}

// IncrementMerge records a merge attempt result.
func (m *Metrics) IncrementMerge(result string) {
	if m != nil {
		m.MergeAttempts.WithLabelValues(result).Inc()
	}
}
