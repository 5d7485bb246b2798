package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestListSubdirs tests that only directories are returned
func TestListSubdirs(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.Mkdir(filepath.Join(dir, "photos"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "documents"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644))

	subs, err := listSubdirs(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(subs))
	for _, s := range subs {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"photos", "documents"}, names)
}

// TestListSubdirsMissing tests the missing-directory error path
func TestListSubdirsMissing(t *testing.T) {
	_, err := listSubdirs(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

// TestTreeSize tests recursive size accounting
func TestTreeSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b"), make([]byte, 50), 0644))

	assert.Equal(t, int64(150), treeSize(dir))
}

// TestMoveTreeSameFilesystem tests the fast rename path
func TestMoveTreeSameFilesystem(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src", "bucket")
	dst := filepath.Join(base, "dst", "entity", "bucket")

	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "data"), []byte("payload"), 0644))

	require.NoError(t, moveTree(src, dst))

	assert.NoDirExists(t, src)
	content, err := os.ReadFile(filepath.Join(dst, "data"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

// TestCopyTree tests the cross-device fallback copier
func TestCopyTree(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("aaa"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "b"), []byte("bbb"), 0644))
	require.NoError(t, os.Symlink("a", filepath.Join(src, "link")))

	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "a"), stamp, stamp))

	require.NoError(t, copyTree(src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "a"))
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(content))

	info, err := os.Stat(filepath.Join(dst, "a"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "file mode is preserved")
	assert.WithinDuration(t, stamp, info.ModTime(), time.Second, "mtime is preserved")

	content, err = os.ReadFile(filepath.Join(dst, "nested", "b"))
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(content))

	target, err := os.Readlink(filepath.Join(dst, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a", target)

	// Source is left alone; the caller removes it after a verified copy
	assert.DirExists(t, src)
}

// TestCopyTreeOverwritesPartialDestination tests convergence after an interrupted move
func TestCopyTreeOverwritesPartialDestination(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")

	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("fresh"), 0644))

	// Leftovers from a prior interrupted copy
	require.NoError(t, os.MkdirAll(dst, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a"), []byte("stale-and-longer"), 0644))

	require.NoError(t, copyTree(src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "a"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(content))
}

// TestDiskUsage tests the statfs wrapper against the test filesystem
func TestDiskUsage(t *testing.T) {
	usage, err := diskUsage(t.TempDir())
	require.NoError(t, err)

	assert.Greater(t, usage.Total, uint64(0))
	assert.LessOrEqual(t, usage.Used, usage.Total)
	assert.InDelta(t, float64(usage.Used)/float64(usage.Total)*100, usage.UsedPercent(), 0.01)
}

// TestDiskUsageMissingPath tests the error path
func TestDiskUsageMissingPath(t *testing.T) {
	_, err := diskUsage(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

// TestUsedPercentZeroTotal tests division safety
func TestUsedPercentZeroTotal(t *testing.T) {
	assert.Equal(t, float64(0), diskStats{}.UsedPercent())
}

// TestExportedDiskUsage tests the used/total convenience wrapper
func TestExportedDiskUsage(t *testing.T) {
	used, total, err := DiskUsage(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, total, uint64(0))
	assert.LessOrEqual(t, used, total)
}
