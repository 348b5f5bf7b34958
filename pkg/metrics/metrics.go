// Package metrics provides Prometheus collectors for the tap's extraction
// path: records and pages per stream, request retries, and per-stream sync
// outcomes. Collection is always on; exposing the registry over HTTP is the
// launcher's concern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsExtracted counts records emitted per stream
	RecordsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tap_nomad_records_extracted_total",
		Help: "Total number of records emitted, by stream",
	}, []string{"stream"})

	// PagesFetched counts source API pages fetched per stream
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tap_nomad_pages_fetched_total",
		Help: "Total number of source API pages fetched, by stream",
	}, []string{"stream"})

	// RequestRetries counts retried source API requests
	RequestRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tap_nomad_request_retries_total",
		Help: "Total number of retried source API requests",
	})

	// StreamFailures counts stream-level sync failures
	StreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tap_nomad_stream_failures_total",
		Help: "Total number of stream sync failures, by stream",
	}, []string{"stream"})

	// SyncDuration observes per-stream sync wall time
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tap_nomad_stream_sync_duration_seconds",
		Help:    "Wall time of one stream's sync",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stream"})
)

// ObserveSync records one stream sync outcome.
func ObserveSync(stream string, d time.Duration, failed bool) {
	SyncDuration.WithLabelValues(stream).Observe(d.Seconds())
	if failed {
		StreamFailures.WithLabelValues(stream).Inc()
	}
}
