package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitrain_llm_calls_total",
			Help: "Total number of language model calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	llmCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitrain_llm_call_duration_seconds",
			Help:    "Language model call latency by operation.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)
	sqlStatementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitrain_sql_statements_total",
			Help: "Total number of SQL statements sent to the target database.",
		},
		[]string{"driver", "outcome"},
	)
	sqlStatementDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitrain_sql_statement_duration_seconds",
			Help:    "SQL statement latency against the target database.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"driver"},
	)
	schemaCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitrain_schema_cache_lookups_total",
			Help: "Schema cache lookups by where the map came from (memory, disk, source, object_store).",
		},
		[]string{"source"},
	)
	askRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitrain_questions_total",
			Help: "Total number of answered or failed questions by error kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		llmCallsTotal,
		llmCallDurationSeconds,
		sqlStatementsTotal,
		sqlStatementDurationSeconds,
		schemaCacheLookupsTotal,
		askRequestsTotal,
	)
}

func ObserveLLMCall(operation string, elapsed time.Duration, err error) {
	llmCallsTotal.WithLabelValues(operation, outcome(err)).Inc()
	llmCallDurationSeconds.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func ObserveSQLStatement(driver string, elapsed time.Duration, err error) {
	sqlStatementsTotal.WithLabelValues(driver, outcome(err)).Inc()
	sqlStatementDurationSeconds.WithLabelValues(driver).Observe(elapsed.Seconds())
}

func ObserveSchemaCacheLookup(source string) {
	schemaCacheLookupsTotal.WithLabelValues(source).Inc()
}

// ObserveQuestion records a finished question; kind is empty on success.
func ObserveQuestion(kind string) {
	if kind == "" {
		kind = "ok"
	}
	askRequestsTotal.WithLabelValues(kind).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
