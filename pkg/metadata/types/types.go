// Package types defines common run-history types and interfaces
package types

import (
	"time"
)

// RunStatus represents the final status of a lifecycle run
type RunStatus string

const (
	// StatusRunning indicates a run is in progress
	StatusRunning RunStatus = "running"
	// StatusSuccess indicates a fully successful run
	StatusSuccess RunStatus = "success"
	// StatusSuccessWithWarnings indicates a successful run with transient
	// warnings (e.g. source files vanished during the mirror transfer)
	StatusSuccessWithWarnings RunStatus = "success_with_warnings"
	// StatusCompletedWithErrors indicates a run that finished but had at
	// least one per-item failure
	StatusCompletedWithErrors RunStatus = "completed_with_errors"
	// StatusFailed indicates a run aborted by a gate or transfer failure
	StatusFailed RunStatus = "failed"
)

// Component names for lifecycle runs
const (
	ComponentMirror    = "mirror"
	ComponentRetention = "retention"
)

// RunCounters aggregates the per-run action counts
type RunCounters struct {
	FilesTransferred int64 `json:"filesTransferred"` // Mirror: files copied to the replica
	BytesTransferred int64 `json:"bytesTransferred"` // Mirror: bytes copied to the replica
	FilesDeleted     int64 `json:"filesDeleted"`     // Mirror: orphans removed from the replica
	BucketsMoved     int64 `json:"bucketsMoved"`     // Retention: date buckets moved hot→warm
	BytesMoved       int64 `json:"bytesMoved"`       // Retention: bytes moved hot→warm
	BucketsPurged    int64 `json:"bucketsPurged"`    // Retention: date buckets purged
	BytesPurged      int64 `json:"bytesPurged"`      // Retention: bytes purged
	ErrorCount       int64 `json:"errorCount"`       // Per-item failures in either component
}

// RunMeta represents metadata for a single lifecycle run
type RunMeta struct {
	ID          string      `json:"id"`
	Component   string      `json:"component"` // mirror or retention
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt time.Time   `json:"completedAt"`
	Status      RunStatus   `json:"status"`
	DryRun      bool        `json:"dryRun"`
	Counters    RunCounters `json:"counters"`
	Message     string      `json:"message"` // Error details or summary text
	LogFilePath string      `json:"logFilePath"`
}

// Duration returns the run's wall-clock duration, zero while still running
func (r RunMeta) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunStore defines the interface for run-history operations
type RunStore interface {
	// CreateRun records the start of a lifecycle run
	CreateRun(component string, dryRun bool) *RunMeta

	// CompleteRun records the outcome of a run
	CompleteRun(id string, status RunStatus, counters RunCounters, message string) error

	// UpdateLogFilePath attaches the runlog file path to a run
	UpdateLogFilePath(id string, logFilePath string) error

	// GetRuns returns all recorded runs, newest first
	GetRuns() []RunMeta

	// GetRunsFiltered returns runs for one component, newest first,
	// capped at limit (0 means no cap)
	GetRunsFiltered(component string, limit int) []RunMeta

	// GetRunByID returns a specific run by ID
	GetRunByID(id string) (RunMeta, bool)

	// GetStats returns aggregate statistics about recorded runs
	GetStats() map[string]interface{}

	// Load loads the run history
	Load() error

	// Save persists the run history
	Save() error
}
