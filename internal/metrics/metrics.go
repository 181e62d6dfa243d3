// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ideaplate"

var (
	// IdeaOperations counts idea writes.
	// Labels: op (create, update, delete), result (success, error)
	IdeaOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ideas",
			Name:      "operations_total",
			Help:      "Total number of idea write operations",
		},
		[]string{"op", "result"},
	)

	// FeedQueries counts feed reads by sort option.
	FeedQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ideas",
			Name:      "feed_queries_total",
			Help:      "Total number of feed queries by sort option",
		},
		[]string{"sort"},
	)

	// EngagementOperations counts like and comment writes.
	// Labels: op (like, unlike, comment, delete_comment)
	EngagementOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engagement",
			Name:      "operations_total",
			Help:      "Total number of engagement write operations",
		},
		[]string{"op"},
	)

	// ActiveWatches tracks open snapshot subscriptions.
	// Labels: kind (likes, comments)
	ActiveWatches = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engagement",
			Name:      "active_watches",
			Help:      "Number of open snapshot subscriptions",
		},
		[]string{"kind"},
	)

	// CollabTransitions counts collaboration request state changes.
	// Labels: to (pending, accepted, rejected)
	CollabTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collab",
			Name:      "transitions_total",
			Help:      "Total number of collaboration request transitions",
		},
		[]string{"to"},
	)

	// RenameFanout counts author-name fan-out runs.
	// Labels: result (complete, partial)
	RenameFanout = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "profiles",
			Name:      "rename_fanout_total",
			Help:      "Total number of author-name fan-out runs by outcome",
		},
		[]string{"result"},
	)

	// HTTPRequestDuration tracks REST request latency.
	// Labels: method, route, status
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Result returns the result label for err.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
