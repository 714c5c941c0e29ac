// Package filex contains filesystem helpers for documents that other
// processes read: directory creation and all-or-nothing file replacement.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir and any missing parents with perm.
func EnsureDir(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// WriteOptions tunes WriteAtomic.
type WriteOptions struct {
	// Perm is applied to the file before it is moved into place.
	Perm os.FileMode

	// OnChmodError receives a failed chmod. The write still proceeds, since
	// bind-mounted volumes may not allow ownership or mode changes.
	OnChmodError func(err error)

	// BeforeRename runs after the temp file is complete and synced. A
	// non-nil error aborts the write and leaves the target untouched.
	BeforeRename func(tmpPath string) error
}

// WriteAtomic replaces path with data. The content goes to a temp file in the
// same directory, is synced, and is then renamed over path, so readers see
// either the old document or the new one, never a partial write.
func WriteAtomic(path string, data []byte, opts WriteOptions) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	if opts.Perm != 0 {
		if chmodErr := os.Chmod(tmpPath, opts.Perm); chmodErr != nil && opts.OnChmodError != nil {
			opts.OnChmodError(chmodErr)
		}
	}

	if opts.BeforeRename != nil {
		if err = opts.BeforeRename(tmpPath); err != nil {
			return err
		}
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}
