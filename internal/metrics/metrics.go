// Package metrics defines the Prometheus collectors of the indexing pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job run outcomes.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Metrics holds the pipeline's collectors. A nil *Metrics records nothing.
type Metrics struct {
	JobRunsTotal        *prometheus.CounterVec
	JobRunDuration      *prometheus.HistogramVec
	DocsIndexedTotal    *prometheus.CounterVec
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	DuplicatesFound     prometheus.Counter
	ClaimsProposedTotal prometheus.Counter
	ClaimActionsTotal   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
// A nil reg uses a private registry, which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cris_job_runs_total",
				Help: "Periodic job runs by job and status.",
			},
			[]string{"job", "status"},
		),
		JobRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cris_job_run_duration_seconds",
				Help:    "Periodic job run duration in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"job"},
		),
		DocsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cris_documents_indexed_total",
				Help: "Index writes by operation (upsert, delete).",
			},
			[]string{"op"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cris_search_queries_total",
				Help: "Search queries by mode and result (hit, zero_result, error).",
			},
			[]string{"mode", "result"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cris_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"mode"},
		),
		DuplicatesFound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cris_duplicates_found_total",
				Help: "Suspected duplicate pairs recorded by the scanner.",
			},
		),
		ClaimsProposedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cris_claims_proposed_total",
				Help: "Claims attached to entries by discovery.",
			},
		),
		ClaimActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cris_claim_actions_total",
				Help: "Interactive claim actions by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.JobRunsTotal,
		m.JobRunDuration,
		m.DocsIndexedTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.DuplicatesFound,
		m.ClaimsProposedTotal,
		m.ClaimActionsTotal,
	)

	return m
}

// ObserveJob records one job run.
func (m *Metrics) ObserveJob(job, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
	if status != StatusSkipped {
		m.JobRunDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

// IndexWrite counts an index write.
func (m *Metrics) IndexWrite(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DocsIndexedTotal.WithLabelValues(op).Add(float64(n))
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(mode string, total uint64, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "hit"
	switch {
	case err != nil:
		result = "error"
	case total == 0:
		result = "zero_result"
	}
	m.SearchQueriesTotal.WithLabelValues(mode, result).Inc()
	m.SearchLatency.WithLabelValues(mode).Observe(d.Seconds())
}

// DuplicateFound counts recorded duplicate pairs.
func (m *Metrics) DuplicateFound(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicatesFound.Add(float64(n))
}

// ClaimsProposed counts claims added by discovery.
func (m *Metrics) ClaimsProposed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ClaimsProposedTotal.Add(float64(n))
}

// ClaimAction counts an interactive claim or decline.
func (m *Metrics) ClaimAction(action, outcome string) {
	if m == nil {
		return
	}
	m.ClaimActionsTotal.WithLabelValues(action, outcome).Inc()
}

// Handler returns the scrape handler for the registry the metrics live in.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
