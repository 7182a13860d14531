package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBQueryDuration tracks data-access operation latency
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsite_db_query_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "outcome"},
	)

	// DBQueryErrors tracks failed operations by error kind
	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsite_db_query_errors_total",
			Help: "Total number of failed database operations",
		},
		[]string{"operation", "kind"},
	)

	// DBRetries tracks retries of transient failures
	DBRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsite_db_retries_total",
			Help: "Total number of retried database operations",
		},
		[]string{"operation"},
	)

	// DBConnectionPoolUsage tracks open connections by state
	DBConnectionPoolUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docsite_db_connection_pool",
			Help: "Database connection pool usage",
		},
		[]string{"state"},
	)

	// HTTPRequests tracks handled requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsite_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPLatency tracks request latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsite_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// EventsPublished tracks domain events sent to the broker
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsite_events_published_total",
			Help: "Total number of published domain events",
		},
		[]string{"subject", "outcome"},
	)

	// RowsPurged tracks soft-deleted rows removed by the retention worker
	RowsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsite_rows_purged_total",
			Help: "Total number of soft-deleted rows hard deleted",
		},
		[]string{"table"},
	)
)
