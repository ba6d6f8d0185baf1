// Package filex contains small filesystem helpers used when preparing
// data directories for the queue database and keyset files.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the parent directory of path (with all missing
// ancestors) and returns it. Used before opening the queue database or
// writing the keyset file.
func EnsureParentDir(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}
