// Package metrics provides observability for the dataset module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks ingest throughput, coding rule applications, and query
// latency for the dataset module.
type Metrics struct {
	IngestJobs      *prometheus.CounterVec
	RowsRead        prometheus.Counter
	RowsKept        prometheus.Counter
	RowsDropped     *prometheus.CounterVec
	RuleApplied     *prometheus.CounterVec
	IngestDuration  prometheus.Histogram
	LookupDuration  prometheus.Histogram
	CacheHitsMissed *prometheus.CounterVec
}

// New creates a Metrics instance with all dataset module metrics registered.
func New() *Metrics {
	return &Metrics{
		IngestJobs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxcov_ingest_jobs_total",
			Help: "Total ingest jobs by terminal status",
		}, []string{"status"}),
		RowsRead: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaxcov_rows_read_total",
			Help: "Total raw rows read from source files",
		}),
		RowsKept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaxcov_rows_kept_total",
			Help: "Total cleaned rows kept in the dataset",
		}),
		RowsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxcov_rows_dropped_total",
			Help: "Total rows dropped during cleaning by reason",
		}, []string{"reason"}),
		RuleApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxcov_coding_rule_applied_total",
			Help: "Total coverage coding rule applications by rule",
		}, []string{"rule"}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaxcov_ingest_duration_seconds",
			Help:    "Duration of full ingest runs (decode, clean, persist)",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaxcov_record_lookup_duration_seconds",
			Help:    "Duration of record lookup operations (read critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CacheHitsMissed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxcov_record_cache_requests_total",
			Help: "Record cache requests by outcome (hit or miss)",
		}, []string{"outcome"}),
	}
}

// ObserveIngest records the duration of one ingest run.
// Call with time.Now() taken at the start of the run.
func (m *Metrics) ObserveIngest(start time.Time) {
	m.IngestDuration.Observe(time.Since(start).Seconds())
}

// ObserveLookup records the duration of one record lookup.
func (m *Metrics) ObserveLookup(start time.Time) {
	m.LookupDuration.Observe(time.Since(start).Seconds())
}

// RecordJob counts a terminal ingest job status.
func (m *Metrics) RecordJob(status string) {
	m.IngestJobs.WithLabelValues(status).Inc()
}

// RecordDrop counts one dropped row by reason.
func (m *Metrics) RecordDrop(reason string, n int) {
	if n > 0 {
		m.RowsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordCache counts one record cache request by outcome ("hit" or "miss").
func (m *Metrics) RecordCache(outcome string) {
	m.CacheHitsMissed.WithLabelValues(outcome).Inc()
}

// RecordRule counts coding rule applications.
func (m *Metrics) RecordRule(rule string, n int) {
	if n > 0 {
		m.RuleApplied.WithLabelValues(rule).Add(float64(n))
	}
}
