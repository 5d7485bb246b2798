// Package mirror implements the one-way primary→replica tree mirror. The
// engine owns the safety gating, logging, metrics and run accounting; the
// actual tree transfer is delegated to an injected TreeSyncer so the gating
// logic is testable without touching a real transfer tool.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata/types"
	"github.com/supporttools/GoStorageGuard/pkg/metrics"
	"github.com/supporttools/GoStorageGuard/pkg/mounts"
	"github.com/supporttools/GoStorageGuard/pkg/runlog"
)

// Status is the outcome classification of a mirror run
type Status string

const (
	// StatusSuccess indicates a fully clean run
	StatusSuccess Status = "success"
	// StatusSuccessWithWarnings indicates a clean run with transient
	// warnings, such as source files vanishing mid-transfer
	StatusSuccessWithWarnings Status = "success_with_warnings"
	// StatusFailed indicates a gate failure or unrecoverable transfer error
	StatusFailed Status = "failed"
)

// Options controls a single mirror invocation
type Options struct {
	DryRun          bool
	DeleteOrphans   bool
	ExcludePatterns []string
}

// Summary reports what a transfer did (or would do, in dry-run)
type Summary struct {
	FilesTransferred int64
	BytesTransferred int64
	FilesDeleted     int64
	Duration         time.Duration
}

// Result is the full outcome of a mirror run
type Result struct {
	Status   Status
	Summary  Summary
	Warnings []string
	Err      error
}

// TreeSyncer performs the underlying one-way tree reconciliation. Warnings
// carry transient conditions that do not fail the run; a non-nil error means
// the transfer is not trustworthy.
type TreeSyncer interface {
	Sync(ctx context.Context, primaryRoot, replicaRoot string, opts Options) (Summary, []string, error)
}

// Engine drives gated mirror runs
type Engine struct {
	cfg     config.MirrorConfig
	checker mounts.Checker
	syncer  TreeSyncer
	sink    *runlog.Logger
	store   types.RunStore
}

// NewEngine creates a mirror engine. store may be nil when run history is
// not wanted (the single-shot CLI without a configured log directory).
func NewEngine(cfg config.MirrorConfig, checker mounts.Checker, syncer TreeSyncer, sink *runlog.Logger, store types.RunStore) *Engine {
	return &Engine{
		cfg:     cfg,
		checker: checker,
		syncer:  syncer,
		sink:    sink,
		store:   store,
	}
}

// DefaultOptions returns the options implied by the engine configuration
func (e *Engine) DefaultOptions() Options {
	return Options{
		DeleteOrphans:   e.cfg.DeleteOrphans,
		ExcludePatterns: e.cfg.ExcludePatterns,
	}
}

// Sync performs one gated mirror run. Both roots must pass the mount-safety
// gate or the underlying syncer is never invoked (fail closed).
func (e *Engine) Sync(ctx context.Context, opts Options) Result {
	var run *types.RunMeta
	if e.store != nil {
		run = e.store.CreateRun(types.ComponentMirror, opts.DryRun)
		if path := e.sink.Path(); path != "" {
			_ = e.store.UpdateLogFilePath(run.ID, path)
		}
	}

	e.sink.Info("mirror run starting: primary=%s replica=%s dryRun=%t deleteOrphans=%t excludes=%d",
		e.cfg.PrimaryRoot, e.cfg.ReplicaRoot, opts.DryRun, opts.DeleteOrphans, len(opts.ExcludePatterns))

	// Mount-safety gate: re-checked on every invocation, never cached
	if err := mounts.RequireMounted(e.checker, e.cfg.PrimaryRoot, e.cfg.ReplicaRoot); err != nil {
		e.sink.Error("mirror aborted before any transfer: %v", err)
		metrics.MountCheckFailures.WithLabelValues(types.ComponentMirror).Inc()
		return e.finish(run, Result{Status: StatusFailed, Err: err})
	}

	start := time.Now()
	summary, warnings, err := e.syncer.Sync(ctx, e.cfg.PrimaryRoot, e.cfg.ReplicaRoot, opts)
	summary.Duration = time.Since(start)

	for _, warning := range warnings {
		e.sink.Warn("%s", warning)
	}

	if err != nil {
		e.sink.Error("mirror transfer failed after %s: %v", summary.Duration.Round(time.Second), err)
		return e.finish(run, Result{Status: StatusFailed, Summary: summary, Warnings: warnings, Err: err})
	}

	status := StatusSuccess
	if len(warnings) > 0 {
		status = StatusSuccessWithWarnings
	}

	verb := "transferred"
	if opts.DryRun {
		verb = "would transfer"
	}
	e.sink.Info("mirror run complete: %s %d files (%s), deleted %d orphans, duration %s",
		verb, summary.FilesTransferred, humanize.Bytes(uint64(summary.BytesTransferred)),
		summary.FilesDeleted, summary.Duration.Round(time.Second))

	if !opts.DryRun {
		metrics.MirrorFilesTransferred.Add(float64(summary.FilesTransferred))
		metrics.MirrorBytesTransferred.Add(float64(summary.BytesTransferred))
		metrics.MirrorFilesDeleted.Add(float64(summary.FilesDeleted))
		metrics.LastRunTimestamp.WithLabelValues(types.ComponentMirror).SetToCurrentTime()
	}

	return e.finish(run, Result{Status: status, Summary: summary, Warnings: warnings})
}

// finish records the run outcome in metrics and the run store
func (e *Engine) finish(run *types.RunMeta, result Result) Result {
	metrics.RunCount.WithLabelValues(types.ComponentMirror, string(result.Status)).Inc()
	metrics.RunDuration.WithLabelValues(types.ComponentMirror).Observe(result.Summary.Duration.Seconds())

	if run != nil && e.store != nil {
		message := ""
		if result.Err != nil {
			message = result.Err.Error()
		} else if len(result.Warnings) > 0 {
			message = fmt.Sprintf("%d transient warnings", len(result.Warnings))
		}

		counters := types.RunCounters{
			FilesTransferred: result.Summary.FilesTransferred,
			BytesTransferred: result.Summary.BytesTransferred,
			FilesDeleted:     result.Summary.FilesDeleted,
		}

		if err := e.store.CompleteRun(run.ID, runStatus(result.Status), counters, message); err != nil {
			e.sink.Warn("failed to record run outcome: %v", err)
		}
	}

	return result
}

// runStatus maps a mirror status onto the shared run-history status
func runStatus(status Status) types.RunStatus {
	switch status {
	case StatusSuccess:
		return types.StatusSuccess
	case StatusSuccessWithWarnings:
		return types.StatusSuccessWithWarnings
	default:
		return types.StatusFailed
	}
}
