// Package metrics provides Prometheus metrics for storage lifecycle operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	// RunCount tracks the total number of lifecycle runs performed
	RunCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storageguard_runs_total",
		Help: "The total number of lifecycle runs performed",
	}, []string{"component", "status"})

	// RunDuration measures time taken by a lifecycle run
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storageguard_run_duration_seconds",
		Help:    "Time taken by a lifecycle run",
		Buckets: prometheus.DefBuckets,
	}, []string{"component"})

	// MirrorBytesTransferred tracks bytes copied to the replica
	MirrorBytesTransferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storageguard_mirror_bytes_transferred_total",
		Help: "Total bytes transferred to the replica by the mirror engine",
	})

	// MirrorFilesTransferred tracks files copied to the replica
	MirrorFilesTransferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storageguard_mirror_files_transferred_total",
		Help: "Total files transferred to the replica by the mirror engine",
	})

	// MirrorFilesDeleted tracks orphans removed from the replica
	MirrorFilesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storageguard_mirror_files_deleted_total",
		Help: "Total orphaned files deleted from the replica",
	})

	// RetentionMoves counts date buckets moved from the hot to the warm tier
	RetentionMoves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storageguard_retention_moves_total",
		Help: "The total number of date buckets moved from hot to warm storage",
	})

	// RetentionPurges counts date buckets purged by the retention policy
	RetentionPurges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storageguard_retention_purges_total",
		Help: "The total number of date buckets purged by retention policy",
	}, []string{"tier"})

	// RetentionBytes tracks bytes moved and purged by the retention mover
	RetentionBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storageguard_retention_bytes_total",
		Help: "Total bytes moved or purged by the retention mover",
	}, []string{"action"})

	// ItemErrors counts per-item failures that did not abort a run
	ItemErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storageguard_item_errors_total",
		Help: "The total number of per-item failures during lifecycle runs",
	}, []string{"component"})

	// MountCheckFailures counts mount-safety gate failures
	MountCheckFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storageguard_mount_check_failures_total",
		Help: "The total number of mount-safety gate failures",
	}, []string{"component"})

	// LastRunTimestamp records timestamp of the last successful run
	LastRunTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storageguard_last_run_timestamp",
		Help: "Timestamp of the last successful lifecycle run",
	}, []string{"component"})

	// TierUsedBytes tracks used space on each storage tier
	TierUsedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storageguard_tier_used_bytes",
		Help: "Used bytes on a storage tier filesystem",
	}, []string{"tier"})

	// TierTotalBytes tracks total space on each storage tier
	TierTotalBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storageguard_tier_total_bytes",
		Help: "Total bytes on a storage tier filesystem",
	}, []string{"tier"})
)
