package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers see either the old or the new content. It returns
// the modification time the file ends up with.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (time.Time, error) {
	if err := EnsureParentDir(path); err != nil {
		return time.Time{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return time.Time{}, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return time.Time{}, err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return time.Time{}, err
	}
	if err := tmp.Close(); err != nil {
		return time.Time{}, err
	}

	// rename keeps the modification time
	fi, err := os.Stat(tmp.Name())
	if err != nil {
		return time.Time{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return time.Time{}, fmt.Errorf("rename into %s: %w", path, err)
	}
	return fi.ModTime(), nil
}
