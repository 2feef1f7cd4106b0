// Package diskspace checks that a download destination can hold the documents
// about to be written to it.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SafetyMargin is applied to the requested size; temp files and filesystem
// overhead need room too.
const SafetyMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space in %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// IsInsufficientSpaceError reports whether err is, or wraps, an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var ise *InsufficientSpaceError
	return errors.As(err, &ise)
}

// availableFunc is swapped in tests
var availableFunc = available

// existingDir walks up from dir to the nearest directory that exists, since the
// destination is usually created by the download itself
func existingDir(dir string) string {
	dir = filepath.Clean(dir)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// Available returns the bytes available to the current user on the filesystem
// holding dir.
func Available(dir string) (int64, error) {
	return availableFunc(existingDir(dir))
}

// Check returns an *InsufficientSpaceError when dir cannot hold requiredBytes
// plus SafetyMargin. When free space cannot be determined (network or virtual
// filesystems) the check passes and the download fails on its own if it must.
func Check(dir string, requiredBytes int64) error {
	if requiredBytes <= 0 {
		return nil
	}
	avail, err := Available(dir)
	if err != nil {
		return nil
	}
	required := int64(float64(requiredBytes) * SafetyMargin)
	if avail < required {
		return &InsufficientSpaceError{Path: dir, RequiredBytes: required, AvailableBytes: avail}
	}
	return nil
}
