// Package metrics provides observability for the claim and grading module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for claim ingestion and grading.
type Metrics struct {
	// Claims ingested
	ClaimsIngested prometheus.Counter

	// Citations added / archived
	CitationEvents *prometheus.CounterVec

	// Grades assigned, labelled by resulting grade
	GradesAssigned *prometheus.CounterVec

	// Grading latency including citation reads and the version-guarded write
	GradeLatency prometheus.Histogram

	// Version-conflict retries during grade writes
	GradeRetries prometheus.Counter
}

// New creates a Metrics instance with all claim module metrics registered.
func New() *Metrics {
	return &Metrics{
		ClaimsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yeto_claims_ingested_total",
			Help: "Claims accepted at the ingestion boundary",
		}),

		CitationEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yeto_claim_citation_events_total",
			Help: "Citation additions and archivals",
		}, []string{"event"}), // event: "added", "archived"

		GradesAssigned: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yeto_claim_grades_assigned_total",
			Help: "Grades written to claims by resulting grade",
		}, []string{"grade"}),

		GradeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "yeto_claim_grade_duration_seconds",
			Help:    "Duration of one grading pass for a claim",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		GradeRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yeto_claim_grade_retries_total",
			Help: "Grade writes retried after a version conflict",
		}),
	}
}

// IncrementIngested records one accepted claim.
func (m *Metrics) IncrementIngested() {
	if m != nil {
		m.ClaimsIngested.Inc()
	}
}

// RecordCitation tracks citation lifecycle events.
func (m *Metrics) RecordCitation(event string) {
	if m != nil {
		m.CitationEvents.WithLabelValues(event).Inc()
	}
}

// IncrementGrade records one grade write.
func (m *Metrics) IncrementGrade(grade string) {
	if m != nil {
		m.GradesAssigned.WithLabelValues(grade).Inc()
	}
}

// ObserveGradeLatency records the duration of a grading pass.
func (m *Metrics) ObserveGradeLatency(d time.Duration) {
	if m != nil {
		m.GradeLatency.Observe(d.Seconds())
	}
}

// IncrementGradeRetry records one version-conflict retry.
func (m *Metrics) IncrementGradeRetry() {
	if m != nil {
		m.GradeRetries.Inc()
	}
}
