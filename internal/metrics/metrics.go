// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RosterWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_writes_total",
			Help: "Total number of whole-roster writes to storage",
		},
		[]string{"op", "status"},
	)

	RosterSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roster_students",
			Help: "Number of students in the in-memory roster",
		},
	)

	RatingUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_updates_total",
			Help: "Total number of rating updates by category and whether the value changed",
		},
		[]string{"category", "changed"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_exports_total",
			Help: "Total number of roster summary exports",
		},
		[]string{"status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
