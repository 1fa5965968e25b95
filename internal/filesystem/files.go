package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/jthoms1/the-collector/internal/logging"
)

// WriteFileAtomic writes data to a temporary file in the destination
// directory and renames it into place, so readers never observe a
// half-written asset.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	start := time.Now()
	defer func() { observeOperation("write", time.Since(start).Seconds(), err) }()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				logging.Warn("failed to remove temp file %s: %v", tmpName, rmErr)
			}
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

// RemoveFiles removes every path, ignoring files that are already gone.
// All failures are combined into the returned error and each one is counted
// as a cleanup failure.
func RemoveFiles(paths ...string) error {
	var errs error
	for _, p := range paths {
		if p == "" {
			continue
		}
		start := time.Now()
		err := os.Remove(p)
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		observeOperation("remove", time.Since(start).Seconds(), err)
		if err != nil {
			observeCleanupFailure()
			errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errs
}

// RemoveFilesBestEffort removes paths and logs, rather than returns, any failure.
// It reports how many removals failed.
func RemoveFilesBestEffort(reason string, paths ...string) int {
	err := RemoveFiles(paths...)
	if err == nil {
		return 0
	}
	failures := multierr.Errors(err)
	for _, e := range failures {
		logging.Warn("Cleanup after %s: %v", reason, e)
	}
	return len(failures)
}

// IsSubPath reports whether child is parent or lies inside it.
func IsSubPath(parent, child string) bool {
	parentAbs, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	childAbs, err := filepath.Abs(child)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(parentAbs, childAbs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !startsWithParentRef(rel))
}

func startsWithParentRef(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
