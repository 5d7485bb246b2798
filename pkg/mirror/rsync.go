package mirror

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// rsync exit codes the engine cares about. 24 means source files vanished
// between listing and transfer, a race with the upstream writer that does
// not indicate data loss on the replica.
const (
	rsyncExitVanished = 24
)

// RsyncSyncer performs the tree transfer by shelling out to rsync, the same
// way the reference deployment does. Archive mode plus hardlink/ACL/xattr
// preservation keeps the replica byte-for-byte equivalent.
type RsyncSyncer struct {
	// RsyncPath is the rsync binary to invoke, defaulting to "rsync" on PATH
	RsyncPath string
}

// NewRsyncSyncer creates a syncer using the given rsync binary path
func NewRsyncSyncer(rsyncPath string) *RsyncSyncer {
	if rsyncPath == "" {
		rsyncPath = "rsync"
	}
	return &RsyncSyncer{RsyncPath: rsyncPath}
}

// Sync runs rsync from primaryRoot to replicaRoot and parses its --stats
// output into a Summary
func (s *RsyncSyncer) Sync(ctx context.Context, primaryRoot, replicaRoot string, opts Options) (Summary, []string, error) {
	args := buildRsyncArgs(primaryRoot, replicaRoot, opts)

	cmd := exec.CommandContext(ctx, s.RsyncPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	summary := parseRsyncStats(stdout.String())

	if runErr == nil {
		return summary, nil, nil
	}

	exitErr, ok := runErr.(*exec.ExitError)
	if !ok {
		return summary, nil, errors.Wrapf(runErr, "failed to execute %s", s.RsyncPath)
	}

	if exitErr.ExitCode() == rsyncExitVanished {
		warning := "some source files vanished during transfer (race with an active writer); replica is consistent with what remained"
		return summary, []string{warning}, nil
	}

	return summary, nil, errors.Wrapf(runErr, "rsync exited with code %d: %s",
		exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
}

// buildRsyncArgs translates Options into an rsync argument list
func buildRsyncArgs(primaryRoot, replicaRoot string, opts Options) []string {
	// -a archive, -H hardlinks, -A ACLs, -X xattrs; --stats for the summary
	args := []string{"-aHAX", "--stats"}

	if opts.DryRun {
		args = append(args, "--dry-run")
	}

	if opts.DeleteOrphans {
		args = append(args, "--delete")
	}

	for _, pattern := range opts.ExcludePatterns {
		args = append(args, fmt.Sprintf("--exclude=%s", pattern))
	}

	// Trailing slash: sync the contents of primary into replica, not the
	// primary directory itself
	src := strings.TrimSuffix(primaryRoot, "/") + "/"
	args = append(args, src, replicaRoot)

	return args
}

// parseRsyncStats extracts transfer counts from rsync --stats output. Counts
// that cannot be found are left at zero; a missing stats block never fails
// the run.
func parseRsyncStats(output string) Summary {
	var summary Summary

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "Number of regular files transferred:"):
			summary.FilesTransferred = parseStatsNumber(line)
		case strings.HasPrefix(line, "Number of files transferred:"):
			// Older rsync wording
			summary.FilesTransferred = parseStatsNumber(line)
		case strings.HasPrefix(line, "Number of deleted files:"):
			summary.FilesDeleted = parseStatsNumber(line)
		case strings.HasPrefix(line, "Total transferred file size:"):
			summary.BytesTransferred = parseStatsNumber(line)
		}
	}

	return summary
}

// parseStatsNumber pulls the first integer out of a stats line, tolerating
// thousands separators and trailing units ("1,234,567 bytes")
func parseStatsNumber(line string) int64 {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return 0
	}

	value := strings.TrimSpace(parts[1])
	if idx := strings.IndexByte(value, ' '); idx > 0 {
		value = value[:idx]
	}
	value = strings.ReplaceAll(value, ",", "")

	// rsync can annotate counts like "123 (reg: 120, dir: 3)"
	value = strings.TrimFunc(value, func(r rune) bool {
		return r < '0' || r > '9'
	})

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
