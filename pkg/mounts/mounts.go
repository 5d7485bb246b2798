// Package mounts implements the mount-safety gate used before any
// destructive filesystem operation. A path passes the gate only if it is the
// root of a currently mounted filesystem or bind mount according to the live
// kernel mount table; an empty directory left behind by an unplugged disk
// does not.
package mounts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Checker reports whether a path is a live mount point
type Checker interface {
	IsMounted(path string) (bool, error)
}

// ProcChecker checks mount points against /proc/self/mountinfo. The mount
// table is re-read on every call; results are never cached.
type ProcChecker struct {
	// MountInfoPath overrides the mountinfo location, used in tests
	MountInfoPath string
}

// NewProcChecker creates a checker backed by the live kernel mount table
func NewProcChecker() *ProcChecker {
	return &ProcChecker{MountInfoPath: "/proc/self/mountinfo"}
}

// IsMounted returns true only if path is itself a mount point
func (c *ProcChecker) IsMounted(path string) (bool, error) {
	f, err := os.Open(c.MountInfoPath)
	if err != nil {
		return false, fmt.Errorf("failed to read mount table: %w", err)
	}
	defer f.Close()

	points, err := parseMountPoints(f)
	if err != nil {
		return false, err
	}

	_, ok := points[filepath.Clean(path)]
	return ok, nil
}

// parseMountPoints extracts the set of mount points from mountinfo content.
// Field layout per proc(5): the mount point is the fifth field, with spaces
// and other special characters octal-escaped.
func parseMountPoints(r io.Reader) (map[string]struct{}, error) {
	points := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}

		mountPoint := unescapeMountPath(fields[4])
		points[filepath.Clean(mountPoint)] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan mount table: %w", err)
	}

	return points, nil
}

// unescapeMountPath decodes the octal escapes the kernel uses for spaces,
// tabs, newlines and backslashes in mount paths
func unescapeMountPath(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}

	var sb strings.Builder
	for i := 0; i < len(path); i++ {
		if path[i] == '\\' && i+3 < len(path) {
			if code, err := strconv.ParseUint(path[i+1:i+4], 8, 8); err == nil {
				sb.WriteByte(byte(code))
				i += 3
				continue
			}
		}
		sb.WriteByte(path[i])
	}
	return sb.String()
}

// GateError identifies a failed mount-safety check
type GateError struct {
	Path string
	Err  error
}

func (e *GateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mount check failed for %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s is not a mounted filesystem (is the disk attached?)", e.Path)
}

func (e *GateError) Unwrap() error {
	return e.Err
}

// RequireMounted verifies every path is a live mount point and returns a
// GateError for the first one that is not. Callers must treat any error as
// fatal to the run: nothing may be written when the gate fails.
func RequireMounted(c Checker, paths ...string) error {
	for _, path := range paths {
		mounted, err := c.IsMounted(path)
		if err != nil {
			return &GateError{Path: path, Err: err}
		}
		if !mounted {
			return &GateError{Path: path}
		}
	}
	return nil
}

// RequireExists verifies every path exists and is a directory. Used where a
// deployment opts out of strict mount checking for the retention tiers.
func RequireExists(paths ...string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return &GateError{Path: path, Err: err}
		}
		if !info.IsDir() {
			return &GateError{Path: path, Err: fmt.Errorf("not a directory")}
		}
	}
	return nil
}
