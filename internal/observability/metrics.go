package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "townsquare_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// TokensIssued counts minted tokens by kind.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "townsquare_tokens_issued_total",
		Help: "Total number of session tokens issued",
	}, []string{"kind"})

	// LoginAttempts counts login outcomes.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "townsquare_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	// ModerationDecisions counts report decisions by action.
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "townsquare_moderation_decisions_total",
		Help: "Report decisions by action",
	}, []string{"action"})

	// UnknownAuthors counts penalizing decisions whose author could not be resolved.
	UnknownAuthors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "townsquare_moderation_unknown_authors_total",
		Help: "Decisions that could not attribute an infraction",
	})

	// Suspensions counts automatic suspensions.
	Suspensions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "townsquare_suspensions_total",
		Help: "Accounts suspended by the infraction threshold",
	})

	// Promotions counts automatic tier promotions.
	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "townsquare_promotions_total",
		Help: "Accounts promoted by activity",
	})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
