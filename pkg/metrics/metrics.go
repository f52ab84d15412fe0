// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal tracks scans by kind (incremental, full) and status
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "scans_total",
			Help:      "Total number of duplicate scans by kind and status",
		},
		[]string{"kind", "status"},
	)

	// ScanDuration tracks scan duration in seconds
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "scan_duration_seconds",
			Help:      "Duration of duplicate scans in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	// PairsCompared tracks pairwise comparisons performed
	PairsCompared = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "pairs_compared_total",
			Help:      "Total number of record pairs compared",
		},
	)

	// SignalFailures tracks degraded signals by signal name
	SignalFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "signal_failures_total",
			Help:      "Total number of signal computations that degraded to zero",
		},
		[]string{"signal"},
	)

	// GroupsCreated tracks duplicate groups persisted
	GroupsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detection",
			Name:      "groups_created_total",
			Help:      "Total number of duplicate groups created",
		},
	)

	// EmbeddingRequests tracks embedding inference calls by status
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding inference requests",
		},
		[]string{"status"},
	)

	// ImageFetches tracks media fetches by status (ok, failed, cached)
	ImageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "imagehash",
			Name:      "fetches_total",
			Help:      "Total number of listing image fetches",
		},
		[]string{"status"},
	)
)
