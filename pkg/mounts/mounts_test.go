package mounts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleMountInfo is trimmed from a real /proc/self/mountinfo
const sampleMountInfo = `22 28 0:21 / /proc rw,nosuid,nodev,noexec,relatime shared:13 - proc proc rw
28 1 8:2 / / rw,relatime shared:1 - ext4 /dev/sda2 rw,errors=remount-ro
101 28 8:16 / /mnt/primary rw,relatime shared:52 - ext4 /dev/sdb rw
102 28 8:32 / /mnt/warm rw,relatime shared:53 - ext4 /dev/sdc rw
103 28 8:48 / /mnt/with\040space rw,relatime shared:54 - ext4 /dev/sdd rw
`

// TestParseMountPoints tests extraction of mount points from mountinfo content
func TestParseMountPoints(t *testing.T) {
	points, err := parseMountPoints(strings.NewReader(sampleMountInfo))
	require.NoError(t, err)

	assert.Contains(t, points, "/")
	assert.Contains(t, points, "/proc")
	assert.Contains(t, points, "/mnt/primary")
	assert.Contains(t, points, "/mnt/warm")
	assert.NotContains(t, points, "/mnt/primary/subdir")
}

// TestParseMountPointsOctalEscapes tests decoding of kernel octal escapes
func TestParseMountPointsOctalEscapes(t *testing.T) {
	points, err := parseMountPoints(strings.NewReader(sampleMountInfo))
	require.NoError(t, err)

	assert.Contains(t, points, "/mnt/with space")
}

// TestParseMountPointsShortLines tests that malformed lines are skipped
func TestParseMountPointsShortLines(t *testing.T) {
	points, err := parseMountPoints(strings.NewReader("garbage\n1 2 3\n"))
	require.NoError(t, err)
	assert.Empty(t, points)
}

// TestUnescapeMountPath tests the octal escape decoder directly
func TestUnescapeMountPath(t *testing.T) {
	assert.Equal(t, "/mnt/plain", unescapeMountPath("/mnt/plain"))
	assert.Equal(t, "/mnt/a b", unescapeMountPath(`/mnt/a\040b`))
	assert.Equal(t, "/mnt/tab\there", unescapeMountPath(`/mnt/tab\011here`))
	assert.Equal(t, `/mnt/back\slash`, unescapeMountPath(`/mnt/back\134slash`))
	// Truncated escape is passed through untouched
	assert.Equal(t, `/mnt/bad\04`, unescapeMountPath(`/mnt/bad\04`))
}

// TestProcCheckerIsMounted tests the checker against a fake mountinfo file
func TestProcCheckerIsMounted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mountinfo")
	require.NoError(t, os.WriteFile(path, []byte(sampleMountInfo), 0644))

	checker := &ProcChecker{MountInfoPath: path}

	mounted, err := checker.IsMounted("/mnt/primary")
	require.NoError(t, err)
	assert.True(t, mounted)

	// Trailing slash normalizes to the same mount point
	mounted, err = checker.IsMounted("/mnt/primary/")
	require.NoError(t, err)
	assert.True(t, mounted)

	mounted, err = checker.IsMounted("/mnt/unplugged")
	require.NoError(t, err)
	assert.False(t, mounted)

	// A directory under a mount point is not itself a mount point
	mounted, err = checker.IsMounted("/mnt/primary/photos")
	require.NoError(t, err)
	assert.False(t, mounted)
}

// TestProcCheckerRereadsTable tests that the mount table is read fresh each call
func TestProcCheckerRereadsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mountinfo")
	require.NoError(t, os.WriteFile(path, []byte(sampleMountInfo), 0644))

	checker := &ProcChecker{MountInfoPath: path}

	mounted, err := checker.IsMounted("/mnt/warm")
	require.NoError(t, err)
	assert.True(t, mounted)

	// Simulate the disk disappearing between calls
	withoutWarm := strings.ReplaceAll(sampleMountInfo,
		`102 28 8:32 / /mnt/warm rw,relatime shared:53 - ext4 /dev/sdc rw`+"\n", "")
	require.NoError(t, os.WriteFile(path, []byte(withoutWarm), 0644))

	mounted, err = checker.IsMounted("/mnt/warm")
	require.NoError(t, err)
	assert.False(t, mounted)
}

// TestProcCheckerMissingMountInfo tests the error path when the table is unreadable
func TestProcCheckerMissingMountInfo(t *testing.T) {
	checker := &ProcChecker{MountInfoPath: filepath.Join(t.TempDir(), "nope")}

	_, err := checker.IsMounted("/mnt/primary")
	assert.Error(t, err)
}

// fakeChecker is a canned Checker for gate tests
type fakeChecker struct {
	mounted map[string]bool
	err     error
}

func (f *fakeChecker) IsMounted(path string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.mounted[path], nil
}

// TestRequireMounted tests the all-or-nothing gate
func TestRequireMounted(t *testing.T) {
	checker := &fakeChecker{mounted: map[string]bool{
		"/mnt/primary": true,
		"/mnt/replica": true,
	}}

	assert.NoError(t, RequireMounted(checker, "/mnt/primary", "/mnt/replica"))

	err := RequireMounted(checker, "/mnt/primary", "/mnt/gone")
	require.Error(t, err)

	var gateErr *GateError
	require.True(t, errors.As(err, &gateErr))
	assert.Equal(t, "/mnt/gone", gateErr.Path)
	assert.Contains(t, err.Error(), "not a mounted filesystem")
}

// TestRequireMountedCheckerError tests that checker failures fail the gate
func TestRequireMountedCheckerError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("mount table unreadable")}

	err := RequireMounted(checker, "/mnt/primary")
	require.Error(t, err)

	var gateErr *GateError
	require.True(t, errors.As(err, &gateErr))
	assert.ErrorContains(t, gateErr.Err, "unreadable")
}

// TestRequireExists tests the relaxed existence gate
func TestRequireExists(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, RequireExists(dir))

	err := RequireExists(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	err = RequireExists(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
