// Package fsutil holds the path helpers shared by model discovery and the
// local runners.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome resolves "~" and "~/..." against the user's home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

// PathExists reports whether path can be stat'ed. Permission errors count as
// existing: the caller will hit them again with a better message.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// SizeMB is the resident-size estimate charged against the memory budget
// for a model file: its size in MiB, rounded up, never below 1.
func SizeMB(size int64) int {
	const mib = 1 << 20
	if size <= 0 {
		return 1
	}
	return int((size + mib - 1) / mib)
}
