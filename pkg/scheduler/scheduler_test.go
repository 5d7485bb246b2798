package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/mirror"
	"github.com/supporttools/GoStorageGuard/pkg/runlog"
)

// okChecker approves every mount check
type okChecker struct{}

func (okChecker) IsMounted(path string) (bool, error) { return true, nil }

// noopSyncer records invocations without transferring anything
type noopSyncer struct {
	calls int
}

func (n *noopSyncer) Sync(ctx context.Context, primaryRoot, replicaRoot string, opts mirror.Options) (mirror.Summary, []string, error) {
	n.calls++
	return mirror.Summary{}, nil, nil
}

func newTestMirrorEngine(t *testing.T) (*mirror.Engine, *noopSyncer) {
	t.Helper()

	sink := runlog.New(t.TempDir(), "mirror")
	t.Cleanup(func() { sink.Close() })

	store := metadata.NewFileStore(filepath.Join(t.TempDir(), "runs.json"))
	syncer := &noopSyncer{}

	cfg := config.MirrorConfig{
		PrimaryRoot: "/mnt/primary",
		ReplicaRoot: "/mnt/replica",
	}

	return mirror.NewEngine(cfg, okChecker{}, syncer, sink, store), syncer
}

// TestSetupJobsSchedulesConfiguredJobs tests cron registration
func TestSetupJobsSchedulesConfiguredJobs(t *testing.T) {
	config.CFG.Mirror.Schedule = "30 2 * * *"

	engine, _ := newTestMirrorEngine(t)

	sched, err := NewScheduler(engine, nil)
	require.NoError(t, err)

	require.NoError(t, sched.SetupJobs())

	assert.Contains(t, sched.jobIDs, "mirror")
	assert.NotContains(t, sched.jobIDs, "retention", "unconfigured job is not scheduled")
}

// TestSetupJobsInvalidCronExpression tests schedule validation
func TestSetupJobsInvalidCronExpression(t *testing.T) {
	config.CFG.Mirror.Schedule = "not a cron line"

	engine, _ := newTestMirrorEngine(t)

	sched, err := NewScheduler(engine, nil)
	require.NoError(t, err)

	err = sched.SetupJobs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron expression")
}

// TestRunMirrorOnce tests the out-of-schedule mirror trigger
func TestRunMirrorOnce(t *testing.T) {
	engine, syncer := newTestMirrorEngine(t)

	sched, err := NewScheduler(engine, nil)
	require.NoError(t, err)

	result, err := sched.RunMirrorOnce(true)
	require.NoError(t, err)
	assert.Equal(t, mirror.StatusSuccess, result.Status)
	assert.Equal(t, 1, syncer.calls)
}

// TestRunMirrorOnceUnconfigured tests the error when no mirror engine exists
func TestRunMirrorOnceUnconfigured(t *testing.T) {
	sched, err := NewScheduler(nil, nil)
	require.NoError(t, err)

	_, err = sched.RunMirrorOnce(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

// TestRunRetentionOnceUnconfigured tests the error when no mover exists
func TestRunRetentionOnceUnconfigured(t *testing.T) {
	sched, err := NewScheduler(nil, nil)
	require.NoError(t, err)

	_, err = sched.RunRetentionOnce(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

// TestNextRunTimes tests next-run reporting after the scheduler starts
func TestNextRunTimes(t *testing.T) {
	config.CFG.Mirror.Schedule = "30 2 * * *"

	engine, _ := newTestMirrorEngine(t)

	sched, err := NewScheduler(engine, nil)
	require.NoError(t, err)
	require.NoError(t, sched.SetupJobs())

	sched.Start()
	defer sched.Stop()

	next := sched.NextRunTimes()
	require.Contains(t, next, "mirror")
	assert.False(t, next["mirror"].IsZero())
}
