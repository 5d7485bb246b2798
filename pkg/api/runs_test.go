package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/metadata/types"
	"github.com/supporttools/GoStorageGuard/pkg/mirror"
	"github.com/supporttools/GoStorageGuard/pkg/runlog"
	"github.com/supporttools/GoStorageGuard/pkg/scheduler"
)

// okChecker approves every mount check
type okChecker struct{}

func (okChecker) IsMounted(path string) (bool, error) { return true, nil }

// noopSyncer transfers nothing successfully
type noopSyncer struct{}

func (noopSyncer) Sync(ctx context.Context, primaryRoot, replicaRoot string, opts mirror.Options) (mirror.Summary, []string, error) {
	return mirror.Summary{}, nil, nil
}

func setupStore(t *testing.T) *metadata.Store {
	t.Helper()

	store := metadata.NewFileStore(filepath.Join(t.TempDir(), "runs.json"))
	previous := metadata.DefaultStore
	metadata.DefaultStore = store
	t.Cleanup(func() { metadata.DefaultStore = previous })

	return store
}

func setupScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	sink := runlog.New(t.TempDir(), "mirror")
	t.Cleanup(func() { sink.Close() })

	engine := mirror.NewEngine(config.MirrorConfig{
		PrimaryRoot: "/mnt/primary",
		ReplicaRoot: "/mnt/replica",
	}, okChecker{}, noopSyncer{}, sink, metadata.DefaultStore)

	sched, err := scheduler.NewScheduler(engine, nil)
	require.NoError(t, err)

	return sched
}

// waitForIdle blocks until no triggered task is running
func waitForIdle(t *testing.T) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		taskLock.Lock()
		running := isTaskRunning
		taskLock.Unlock()
		if !running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("triggered task did not finish in time")
}

// TestHandleRuns tests listing recorded runs
func TestHandleRuns(t *testing.T) {
	store := setupStore(t)

	run := store.CreateRun(types.ComponentMirror, false)
	require.NoError(t, store.CompleteRun(run.ID, types.StatusSuccess, types.RunCounters{FilesTransferred: 5}, ""))
	store.CreateRun(types.ComponentRetention, false)

	handler := NewRunsHandler(nil)

	req := httptest.NewRequest("GET", "/api/runs", nil)
	rr := httptest.NewRecorder()
	handler.handleRuns(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Runs  []types.RunMeta `json:"runs"`
		Count int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Count)
}

// TestHandleRunsComponentFilter tests the component query parameter
func TestHandleRunsComponentFilter(t *testing.T) {
	store := setupStore(t)

	store.CreateRun(types.ComponentMirror, false)
	store.CreateRun(types.ComponentRetention, false)

	handler := NewRunsHandler(nil)

	req := httptest.NewRequest("GET", "/api/runs?component=mirror", nil)
	rr := httptest.NewRecorder()
	handler.handleRuns(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Runs []types.RunMeta `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	require.Len(t, response.Runs, 1)
	assert.Equal(t, types.ComponentMirror, response.Runs[0].Component)
}

// TestHandleRunsInvalidComponent tests rejection of unknown components
func TestHandleRunsInvalidComponent(t *testing.T) {
	setupStore(t)

	handler := NewRunsHandler(nil)

	req := httptest.NewRequest("GET", "/api/runs?component=bogus", nil)
	rr := httptest.NewRecorder()
	handler.handleRuns(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// TestHandleRunsMethodNotAllowed tests the method guard
func TestHandleRunsMethodNotAllowed(t *testing.T) {
	setupStore(t)

	handler := NewRunsHandler(nil)

	req := httptest.NewRequest("POST", "/api/runs", nil)
	rr := httptest.NewRecorder()
	handler.handleRuns(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

// TestHandleRunStats tests the aggregate stats endpoint
func TestHandleRunStats(t *testing.T) {
	store := setupStore(t)

	run := store.CreateRun(types.ComponentMirror, false)
	require.NoError(t, store.CompleteRun(run.ID, types.StatusSuccess, types.RunCounters{}, ""))

	handler := NewRunsHandler(nil)

	req := httptest.NewRequest("GET", "/api/runs/stats", nil)
	rr := httptest.NewRecorder()
	handler.handleRunStats(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["totalRuns"])
}

// TestHandleTrigger tests kicking off a manual mirror pass
func TestHandleTrigger(t *testing.T) {
	store := setupStore(t)
	sched := setupScheduler(t)
	handler := NewRunsHandler(sched)

	req := httptest.NewRequest("POST", "/api/runs/trigger?component=mirror&dryRun=true", nil)
	rr := httptest.NewRecorder()
	handler.handleTrigger(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	waitForIdle(t)

	runs := store.GetRunsFiltered(types.ComponentMirror, 0)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].DryRun)
}

// TestHandleTriggerInvalidComponent tests component validation
func TestHandleTriggerInvalidComponent(t *testing.T) {
	setupStore(t)
	handler := NewRunsHandler(setupScheduler(t))

	req := httptest.NewRequest("POST", "/api/runs/trigger?component=backup", nil)
	rr := httptest.NewRecorder()
	handler.handleTrigger(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// TestHandleTriggerNoScheduler tests the unconfigured-scheduler guard
func TestHandleTriggerNoScheduler(t *testing.T) {
	setupStore(t)
	handler := NewRunsHandler(nil)

	req := httptest.NewRequest("POST", "/api/runs/trigger?component=mirror", nil)
	rr := httptest.NewRecorder()
	handler.handleTrigger(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

// TestHandleTriggerConflict tests that concurrent triggers are refused
func TestHandleTriggerConflict(t *testing.T) {
	setupStore(t)
	handler := NewRunsHandler(setupScheduler(t))

	taskLock.Lock()
	isTaskRunning = true
	taskLock.Unlock()
	defer func() {
		taskLock.Lock()
		isTaskRunning = false
		taskLock.Unlock()
	}()

	req := httptest.NewRequest("POST", "/api/runs/trigger?component=mirror", nil)
	rr := httptest.NewRecorder()
	handler.handleTrigger(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

// TestParseIntDefaults tests the query parameter helper
func TestParseIntDefaults(t *testing.T) {
	assert.Equal(t, 50, parseInt("", 50))
	assert.Equal(t, 50, parseInt("abc", 50))
	assert.Equal(t, 50, parseInt("0", 50))
	assert.Equal(t, 25, parseInt("25", 50))
}
