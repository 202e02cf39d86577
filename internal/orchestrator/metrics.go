package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StaleResponses counts index responses dropped because a newer query
	// was issued before they arrived.
	StaleResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_stale_responses_total",
			Help: "Search responses discarded by the generation token check",
		},
		[]string{"surface"},
	)

	// QueriesIssued counts queries sent to the pipeline by orchestrators.
	QueriesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_issued_total",
			Help: "Queries issued by search sessions",
		},
		[]string{"surface", "mode"},
	)

	// QueryFailures counts queries that ended in the failed state.
	QueryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_query_failures_total",
			Help: "Session queries that failed",
		},
		[]string{"surface", "mode"},
	)

	// ActiveSessions tracks open search sessions.
	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "search_sessions_active",
			Help: "Open search sessions",
		},
		[]string{"surface"},
	)
)
