package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_batches_total",
			Help: "Total number of batch scoring requests",
		},
		[]string{"status"},
	)

	MatchItemsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_items_scored_total",
			Help: "Total number of scholarships scored, by result source",
		},
		[]string{"source"},
	)

	MatchScoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "match_score_duration_seconds",
			Help: "Duration of a single scholarship scoring operation",
		},
		[]string{"strategy"},
	)

	SessionSnapshotOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_snapshot_ops_total",
			Help: "Session snapshot store operations",
		},
		[]string{"op", "status"},
	)

	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Scholarship search queries",
		},
		[]string{"status"},
	)
)
