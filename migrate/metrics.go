package migrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// caseTotal counts processed cases by outcome.
	caseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_migrate_cases_total",
		Help: "Total cases processed by the migration runner, by outcome",
	}, []string{"outcome"})

	// correctionTotal counts corrections applied across the run.
	correctionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caseflow_migrate_corrections_total",
		Help: "Total corrections applied by the migration runner",
	})

	// caseDuration tracks per-case processing latency.
	caseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "caseflow_migrate_case_duration_seconds",
		Help:    "Per-case migration duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// runDuration tracks full run latency.
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "caseflow_migrate_run_duration_seconds",
		Help:    "Full migration run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)
