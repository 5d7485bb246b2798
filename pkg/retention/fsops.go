package retention

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// subdir is a direct subdirectory with the mtime used as its age reference
type subdir struct {
	Name    string
	ModTime time.Time
}

// listSubdirs returns the direct subdirectories of dir. Plain files at this
// level (stray clips, metadata files) are not lifecycle units and are
// ignored.
func listSubdirs(dir string) ([]subdir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dirs []subdir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirs = append(dirs, subdir{Name: entry.Name(), ModTime: info.ModTime()})
	}

	return dirs, nil
}

// treeSize returns the total size in bytes of all regular files under path.
// Best effort, used for reporting only: unreadable entries count as zero.
func treeSize(path string) int64 {
	var size int64

	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})

	return size
}

// moveTree relocates a bucket directory, preferring an atomic rename. Hot
// and warm tiers normally live on separate filesystems, so rename fails with
// EXDEV and the move falls back to copy-then-remove; the source is only
// removed after the whole copy succeeded. If the destination already exists
// from an interrupted previous run, the copy merges into it and the move is
// completed.
func moveTree(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", dst, err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !isCrossDevice(err) && !os.IsExist(err) {
		return fmt.Errorf("failed to rename %s: %w", src, err)
	}

	if err := copyTree(src, dst); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("copied %s but failed to remove source: %w", src, err)
	}

	return nil
}

// isCrossDevice reports whether err is the EXDEV rename failure
func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return linkErr.Err == syscall.EXDEV
}

// copyTree copies a directory subtree preserving file modes and mtimes.
// Files already present at the destination are overwritten, which makes a
// retried move after an interruption converge on the same result.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return err
			}
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(link, target); err != nil {
				return err
			}
		case d.Type().IsRegular():
			if err := copyFile(path, target, info); err != nil {
				return err
			}
		default:
			// Sockets and devices have no place in a recording tree
		}

		return nil
	})
}

// copyFile copies one regular file preserving mode and mtime
func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	if err := out.Close(); err != nil {
		return err
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// diskStats reports filesystem utilization for a tier root
type diskStats struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// UsedPercent returns the used fraction as a percentage
func (d diskStats) UsedPercent() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Used) / float64(d.Total) * 100
}

// diskUsage queries the filesystem holding path via statfs
func diskUsage(path string) (diskStats, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return diskStats{}, err
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)

	return diskStats{
		Total: total,
		Free:  free,
		Used:  total - free,
	}, nil
}

// DiskUsage reports used and total bytes for the filesystem holding path.
func DiskUsage(path string) (used, total uint64, err error) {
	stats, err := diskUsage(path)
	if err != nil {
		return 0, 0, err
	}
	return stats.Used, stats.Total, nil
}
