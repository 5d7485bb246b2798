// Package metadata manages tracking and persistence of lifecycle run history.
package metadata

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata/types"
)

// Re-export types from the types package for convenience
type (
	// RunMeta represents metadata for a single lifecycle run
	RunMeta = types.RunMeta
	// RunStatus represents the final status of a run
	RunStatus = types.RunStatus
	// RunCounters aggregates the per-run action counts
	RunCounters = types.RunCounters
)

// maxFileStoreRuns caps the file-based history so runs.json cannot grow
// without bound under a daily schedule
const maxFileStoreRuns = 500

// RunHistory is the persisted shape of the file-based store
type RunHistory struct {
	Runs        []types.RunMeta `json:"runs"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Version     string          `json:"version"`
}

// Store is the file-based run-history store
type Store struct {
	history  RunHistory
	mutex    sync.RWMutex
	filepath string
}

// DefaultStore is the global run-history store instance
var DefaultStore types.RunStore

// Initialize creates and initializes the run-history store. The MySQL-backed
// store is used when enabled in configuration; the file-based store under
// the log directory is the fallback.
func Initialize() error {
	if DefaultStore != nil {
		return nil // Already initialized
	}

	if config.CFG.RunDB.Enabled {
		return InitializeRunDatabase()
	}

	store := NewFileStore(runHistoryPath())
	DefaultStore = store

	if err := DefaultStore.Load(); err != nil {
		log.Printf("Warning: Could not load existing run history, starting fresh: %v", err)
	}

	return nil
}

// runHistoryPath decides where the file-based history lives
func runHistoryPath() string {
	if config.CFG.Log.Directory != "" {
		return filepath.Join(config.CFG.Log.Directory, "runs.json")
	}

	// Use a temporary location if no log directory is configured
	tmpDir, err := os.MkdirTemp("", "storageguard-metadata")
	if err != nil {
		return filepath.Join(os.TempDir(), "storageguard-runs.json")
	}
	return filepath.Join(tmpDir, "runs.json")
}

// NewFileStore creates a file-based store persisting to the given path
func NewFileStore(path string) *Store {
	return &Store{
		history: RunHistory{
			Runs:        make([]types.RunMeta, 0),
			LastUpdated: time.Now(),
			Version:     "1.0",
		},
		filepath: path,
	}
}

// Load loads the run history from file
func (s *Store) Load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Check if file exists
	if _, err := os.Stat(s.filepath); os.IsNotExist(err) {
		log.Printf("Run history file does not exist at %s, will create new", s.filepath)
		return s.save() // Create empty history file
	}

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return fmt.Errorf("failed to read run history file: %w", err)
	}

	if err := json.Unmarshal(data, &s.history); err != nil {
		return fmt.Errorf("failed to unmarshal run history: %w", err)
	}

	log.Printf("Loaded run history with %d records", len(s.history.Runs))
	return nil
}

// Save persists the run history to file
func (s *Store) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.save()
}

// save is the internal method that performs the actual save (without locking)
func (s *Store) save() error {
	s.history.LastUpdated = time.Now()

	// Keep the newest records when the history exceeds the cap
	if len(s.history.Runs) > maxFileStoreRuns {
		s.sortNewestFirst()
		s.history.Runs = s.history.Runs[:maxFileStoreRuns]
	}

	data, err := json.MarshalIndent(s.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	dir := filepath.Dir(s.filepath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for run history: %w", err)
	}

	if err := os.WriteFile(s.filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run history file: %w", err)
	}

	return nil
}

func (s *Store) sortNewestFirst() {
	sort.Slice(s.history.Runs, func(i, j int) bool {
		return s.history.Runs[i].StartedAt.After(s.history.Runs[j].StartedAt)
	})
}

// CreateRun records the start of a lifecycle run
func (s *Store) CreateRun(component string, dryRun bool) *types.RunMeta {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta := &types.RunMeta{
		ID:        uuid.New().String(),
		Component: component,
		StartedAt: time.Now(),
		Status:    types.StatusRunning,
		DryRun:    dryRun,
	}

	s.history.Runs = append(s.history.Runs, *meta)

	_ = s.save() // Ignore error, as we'll continue anyway

	return meta
}

// CompleteRun records the outcome of a run
func (s *Store) CompleteRun(id string, status types.RunStatus, counters types.RunCounters, message string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, run := range s.history.Runs {
		if run.ID == id {
			s.history.Runs[i].Status = status
			s.history.Runs[i].Counters = counters
			s.history.Runs[i].Message = message
			s.history.Runs[i].CompletedAt = time.Now()

			return s.save()
		}
	}

	return fmt.Errorf("run with ID %s not found", id)
}

// UpdateLogFilePath attaches the runlog file path to a run
func (s *Store) UpdateLogFilePath(id string, logFilePath string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, run := range s.history.Runs {
		if run.ID == id {
			s.history.Runs[i].LogFilePath = logFilePath
			return s.save()
		}
	}

	return fmt.Errorf("run with ID %s not found", id)
}

// GetRuns returns all recorded runs, newest first
func (s *Store) GetRuns() []types.RunMeta {
	return s.GetRunsFiltered("", 0)
}

// GetRunsFiltered returns runs for one component, newest first
func (s *Store) GetRunsFiltered(component string, limit int) []types.RunMeta {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	runs := make([]types.RunMeta, 0, len(s.history.Runs))
	for _, run := range s.history.Runs {
		if component != "" && run.Component != component {
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs
}

// GetRunByID returns a specific run by ID
func (s *Store) GetRunByID(id string) (types.RunMeta, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, run := range s.history.Runs {
		if run.ID == id {
			return run, true
		}
	}

	return types.RunMeta{}, false
}

// GetStats returns aggregate statistics about recorded runs
func (s *Store) GetStats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := map[string]interface{}{
		"totalRuns": len(s.history.Runs),
	}

	byComponent := make(map[string]int)
	byStatus := make(map[string]int)
	var bytesTransferred, bytesMoved, bytesPurged int64
	var lastMirror, lastRetention time.Time

	for _, run := range s.history.Runs {
		byComponent[run.Component]++
		byStatus[string(run.Status)]++
		bytesTransferred += run.Counters.BytesTransferred
		bytesMoved += run.Counters.BytesMoved
		bytesPurged += run.Counters.BytesPurged

		if run.Status == types.StatusSuccess || run.Status == types.StatusSuccessWithWarnings {
			switch run.Component {
			case types.ComponentMirror:
				if run.CompletedAt.After(lastMirror) {
					lastMirror = run.CompletedAt
				}
			case types.ComponentRetention:
				if run.CompletedAt.After(lastRetention) {
					lastRetention = run.CompletedAt
				}
			}
		}
	}

	stats["byComponent"] = byComponent
	stats["byStatus"] = byStatus
	stats["totalBytesTransferred"] = bytesTransferred
	stats["totalBytesMoved"] = bytesMoved
	stats["totalBytesPurged"] = bytesPurged
	stats["lastSuccessfulMirror"] = lastMirror
	stats["lastSuccessfulRetention"] = lastRetention

	return stats
}
