// Package retention implements the two-tier retention mover for dated
// recording directories. Each entity (camera) owns date-bucket
// subdirectories under the hot root; buckets older than the hot threshold
// are relocated to the warm root preserving their relative path, and buckets
// older than the total threshold are purged from both tiers.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata/types"
	"github.com/supporttools/GoStorageGuard/pkg/metrics"
	"github.com/supporttools/GoStorageGuard/pkg/mounts"
	"github.com/supporttools/GoStorageGuard/pkg/runlog"
)

// Clock abstracts time retrieval so aging logic is deterministic in tests
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time
type RealClock struct{}

// Now implements Clock
func (RealClock) Now() time.Time { return time.Now() }

// Summary aggregates the actions of one retention pass. Moves and purges are
// accounted separately; Errors counts per-item failures that did not abort
// the pass.
type Summary struct {
	BucketsMoved  int64
	BytesMoved    int64
	BucketsPurged int64
	BytesPurged   int64
	Errors        int64
	DryRun        bool
	Duration      time.Duration
}

// Mover executes tiered retention passes
type Mover struct {
	cfg     config.RetentionConfig
	checker mounts.Checker
	clock   Clock
	sink    *runlog.Logger
	store   types.RunStore
}

// NewMover creates a retention mover. store may be nil when run history is
// not wanted.
func NewMover(cfg config.RetentionConfig, checker mounts.Checker, clock Clock, sink *runlog.Logger, store types.RunStore) *Mover {
	if clock == nil {
		clock = RealClock{}
	}
	return &Mover{
		cfg:     cfg,
		checker: checker,
		clock:   clock,
		sink:    sink,
		store:   store,
	}
}

// RunPass executes one full retention pass. The returned error is non-nil
// only for fatal preconditions (mount gate, unreadable roots); per-item
// failures are reflected in Summary.Errors.
func (m *Mover) RunPass(ctx context.Context, dryRun bool) (Summary, error) {
	summary := Summary{DryRun: dryRun}
	start := m.clock.Now()

	var run *types.RunMeta
	if m.store != nil {
		run = m.store.CreateRun(types.ComponentRetention, dryRun)
		if path := m.sink.Path(); path != "" {
			_ = m.store.UpdateLogFilePath(run.ID, path)
		}
	}

	m.sink.Info("retention pass starting: hot=%s warm=%s hotDays=%d totalDays=%d dryRun=%t",
		m.cfg.HotRoot, m.cfg.WarmRoot, m.cfg.HotRetentionDays, m.cfg.TotalRetentionDays, dryRun)

	// Precondition gate: fatal to the whole pass, nothing is touched on
	// failure. RequireMounts relaxes to an existence check for deployments
	// where both tiers share a filesystem.
	var gateErr error
	if m.cfg.RequireMounts {
		gateErr = mounts.RequireMounted(m.checker, m.cfg.HotRoot, m.cfg.WarmRoot)
	} else {
		gateErr = mounts.RequireExists(m.cfg.HotRoot, m.cfg.WarmRoot)
	}
	if gateErr != nil {
		m.sink.Error("retention pass aborted before any action: %v", gateErr)
		metrics.MountCheckFailures.WithLabelValues(types.ComponentRetention).Inc()
		m.finish(run, summary, types.StatusFailed, gateErr.Error())
		return summary, gateErr
	}

	// Phase 1 completes in full before phase 2 begins, so a bucket past both
	// thresholds is moved to warm and purged from warm in the same pass
	// rather than stranded in hot.
	m.movePhase(ctx, &summary)
	m.purgePhase(ctx, &summary)

	m.reportUsage()

	summary.Duration = m.clock.Now().Sub(start)

	verbMoved, verbPurged := "moved", "purged"
	if dryRun {
		verbMoved, verbPurged = "would move", "would purge"
	}
	m.sink.Info("retention pass complete: %s %d buckets (%s), %s %d buckets (%s), %d errors",
		verbMoved, summary.BucketsMoved, humanize.Bytes(uint64(summary.BytesMoved)),
		verbPurged, summary.BucketsPurged, humanize.Bytes(uint64(summary.BytesPurged)),
		summary.Errors)

	status := types.StatusSuccess
	if summary.Errors > 0 {
		status = types.StatusCompletedWithErrors
	} else if !dryRun {
		metrics.LastRunTimestamp.WithLabelValues(types.ComponentRetention).SetToCurrentTime()
	}

	m.finish(run, summary, status, "")
	return summary, nil
}

// movePhase relocates over-threshold buckets from the hot to the warm tier
func (m *Mover) movePhase(ctx context.Context, summary *Summary) {
	threshold := time.Duration(m.cfg.HotRetentionDays) * 24 * time.Hour

	entities, err := listSubdirs(m.cfg.HotRoot)
	if err != nil {
		m.sink.Error("failed to list hot root %s: %v", m.cfg.HotRoot, err)
		summary.Errors++
		metrics.ItemErrors.WithLabelValues(types.ComponentRetention).Inc()
		return
	}

	for _, entity := range entities {
		if ctx.Err() != nil {
			return
		}

		entityDir := filepath.Join(m.cfg.HotRoot, entity.Name)
		buckets, err := listSubdirs(entityDir)
		if err != nil {
			m.sink.Error("failed to list entity %s: %v", entityDir, err)
			summary.Errors++
			metrics.ItemErrors.WithLabelValues(types.ComponentRetention).Inc()
			continue
		}

		for _, bucket := range buckets {
			if ctx.Err() != nil {
				return
			}

			src := filepath.Join(entityDir, bucket.Name)
			if age := m.clock.Now().Sub(bucket.ModTime); age <= threshold {
				continue
			}

			dst := filepath.Join(m.cfg.WarmRoot, entity.Name, bucket.Name)
			size := treeSize(src)

			if summary.DryRun {
				m.sink.Info("would move %s -> %s (%s)", src, dst, humanize.Bytes(uint64(size)))
				summary.BucketsMoved++
				summary.BytesMoved += size
				continue
			}

			if err := moveTree(src, dst); err != nil {
				m.sink.Error("failed to move %s -> %s: %v", src, dst, err)
				summary.Errors++
				metrics.ItemErrors.WithLabelValues(types.ComponentRetention).Inc()
				continue
			}

			m.sink.Info("moved %s -> %s (%s)", src, dst, humanize.Bytes(uint64(size)))
			summary.BucketsMoved++
			summary.BytesMoved += size
			metrics.RetentionMoves.Inc()
			metrics.RetentionBytes.WithLabelValues("moved").Add(float64(size))
		}
	}
}

// purgePhase deletes buckets older than the total retention threshold from
// both tiers. The hot tier is checked too, even though the move phase should
// have emptied it of over-threshold buckets; this guards against partial
// failures in prior runs.
func (m *Mover) purgePhase(ctx context.Context, summary *Summary) {
	threshold := time.Duration(m.cfg.TotalRetentionDays) * 24 * time.Hour

	for _, tier := range []struct {
		name string
		root string
	}{
		{"hot", m.cfg.HotRoot},
		{"warm", m.cfg.WarmRoot},
	} {
		entities, err := listSubdirs(tier.root)
		if err != nil {
			if os.IsNotExist(err) && tier.name == "warm" {
				continue // Warm tier may not have been written yet
			}
			m.sink.Error("failed to list %s root %s: %v", tier.name, tier.root, err)
			summary.Errors++
			metrics.ItemErrors.WithLabelValues(types.ComponentRetention).Inc()
			continue
		}

		for _, entity := range entities {
			if ctx.Err() != nil {
				return
			}

			entityDir := filepath.Join(tier.root, entity.Name)
			buckets, err := listSubdirs(entityDir)
			if err != nil {
				m.sink.Error("failed to list entity %s: %v", entityDir, err)
				summary.Errors++
				metrics.ItemErrors.WithLabelValues(types.ComponentRetention).Inc()
				continue
			}

			for _, bucket := range buckets {
				if ctx.Err() != nil {
					return
				}

				path := filepath.Join(entityDir, bucket.Name)
				if age := m.clock.Now().Sub(bucket.ModTime); age <= threshold {
					continue
				}

				size := treeSize(path)

				if summary.DryRun {
					m.sink.Info("would delete %s from %s tier (%s)", path, tier.name, humanize.Bytes(uint64(size)))
					summary.BucketsPurged++
					summary.BytesPurged += size
					continue
				}

				if err := os.RemoveAll(path); err != nil {
					m.sink.Error("failed to delete %s: %v", path, err)
					summary.Errors++
					metrics.ItemErrors.WithLabelValues(types.ComponentRetention).Inc()
					continue
				}

				m.sink.Info("deleted %s from %s tier (%s)", path, tier.name, humanize.Bytes(uint64(size)))
				summary.BucketsPurged++
				summary.BytesPurged += size
				metrics.RetentionPurges.WithLabelValues(tier.name).Inc()
				metrics.RetentionBytes.WithLabelValues("purged").Add(float64(size))
			}
		}
	}
}

// reportUsage logs space utilization of both tiers. Best effort: a failure
// here is a warning, never a run failure.
func (m *Mover) reportUsage() {
	for _, tier := range []struct {
		name string
		root string
	}{
		{"hot", m.cfg.HotRoot},
		{"warm", m.cfg.WarmRoot},
	} {
		usage, err := diskUsage(tier.root)
		if err != nil {
			m.sink.Warn("could not determine disk usage for %s tier (%s): %v", tier.name, tier.root, err)
			continue
		}

		m.sink.Info("%s tier usage: %s of %s used (%.1f%%)",
			tier.name, humanize.Bytes(usage.Used), humanize.Bytes(usage.Total), usage.UsedPercent())
		metrics.TierUsedBytes.WithLabelValues(tier.name).Set(float64(usage.Used))
		metrics.TierTotalBytes.WithLabelValues(tier.name).Set(float64(usage.Total))
	}
}

// finish records the pass outcome in metrics and the run store
func (m *Mover) finish(run *types.RunMeta, summary Summary, status types.RunStatus, message string) {
	metrics.RunCount.WithLabelValues(types.ComponentRetention, string(status)).Inc()
	metrics.RunDuration.WithLabelValues(types.ComponentRetention).Observe(summary.Duration.Seconds())

	if run == nil || m.store == nil {
		return
	}

	if message == "" && summary.Errors > 0 {
		message = fmt.Sprintf("%d per-item failures, see run log", summary.Errors)
	}

	counters := types.RunCounters{
		BucketsMoved:  summary.BucketsMoved,
		BytesMoved:    summary.BytesMoved,
		BucketsPurged: summary.BucketsPurged,
		BytesPurged:   summary.BytesPurged,
		ErrorCount:    summary.Errors,
	}

	if err := m.store.CompleteRun(run.ID, status, counters, message); err != nil {
		m.sink.Warn("failed to record run outcome: %v", err)
	}
}
