// Package metrics exposes Prometheus metrics for the detection pipeline.
//
//	metrics.RecordEvaluation(time.Since(start))
//	metrics.RecordCacheHit()
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClusterEvaluationsTotal counts identity evaluations that reached the detection engine
	ClusterEvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchdog_cluster_evaluations_total",
			Help: "Total number of identity evaluations",
		},
	)

	// ClusterEvaluationDuration tracks the latency of one identity evaluation
	ClusterEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchdog_cluster_evaluation_duration_seconds",
			Help:    "Duration of identity evaluations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// ClusterCacheLookups counts cluster cache lookups by result
	ClusterCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_cluster_cache_lookups_total",
			Help: "Cluster cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	// SightingsIngestedTotal counts sightings accepted by the ingestion path
	SightingsIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchdog_sightings_ingested_total",
			Help: "Total number of ingested sightings",
		},
	)

	// RecomputeDuration tracks full recompute runs by outcome
	RecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchdog_recompute_duration_seconds",
			Help:    "Duration of recompute-all runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"status"},
	)

	// ClustersTracked is the number of clusters seen by the last recompute
	ClustersTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchdog_clusters_tracked",
			Help: "Number of transmitter clusters after the last recompute",
		},
	)
)

// RecordEvaluation records one identity evaluation
func RecordEvaluation(duration time.Duration) {
	ClusterEvaluationsTotal.Inc()
	ClusterEvaluationDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a cluster cache hit
func RecordCacheHit() {
	ClusterCacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a cluster cache miss
func RecordCacheMiss() {
	ClusterCacheLookups.WithLabelValues("miss").Inc()
}

// RecordCacheStale records a cached entry rejected because the store changed since it was
// computed, possibly by another process
func RecordCacheStale() {
	ClusterCacheLookups.WithLabelValues("stale").Inc()
}

// RecordIngest records an ingested sighting
func RecordIngest() {
	SightingsIngestedTotal.Inc()
}

// RecordRecompute records a finished recompute run
func RecordRecompute(status string, clusters int, duration time.Duration) {
	RecomputeDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == "completed" {
		ClustersTracked.Set(float64(clusters))
	}
}
