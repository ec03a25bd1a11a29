package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_cycle_duration_seconds",
			Help:    "Duration of one engine tick in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
	)

	CollectorRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_runs_total",
			Help: "Collector invocations by outcome",
		},
		[]string{"collector", "status"}, // status: success, empty, error
	)

	SnapshotsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_persisted_total",
			Help: "Snapshots written to the store",
		},
		[]string{"collector"},
	)

	AnalyzerInsights = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_insights_total",
			Help: "Insights emitted per analyzer",
		},
		[]string{"analyzer"},
	)

	AnalyzerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_errors_total",
			Help: "Analyzer failures caught by the engine",
		},
		[]string{"analyzer"},
	)

	DecisionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_outcomes_total",
			Help: "Decision engine verdicts",
		},
		[]string{"action", "reason"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Immediate notification sends by outcome",
		},
		[]string{"channel", "status"}, // status: success, failed
	)

	ReportsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_sent_total",
			Help: "Scheduled reports delivered",
		},
		[]string{"report"},
	)

	SlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Queries slower than the tracer threshold",
		},
	)
)

// RecordCycle records the duration of one engine tick.
func RecordCycle(d time.Duration) {
	EngineCycleDuration.Observe(d.Seconds())
}

// RecordCollectorRun records one collector invocation.
func RecordCollectorRun(collector, status string) {
	CollectorRuns.WithLabelValues(collector, status).Inc()
}

// RecordDecision records one decision engine verdict.
func RecordDecision(action, reason string) {
	DecisionOutcomes.WithLabelValues(action, reason).Inc()
}

// RecordDelivery records one immediate send attempt.
func RecordDelivery(channel, status string) {
	Deliveries.WithLabelValues(channel, status).Inc()
}
