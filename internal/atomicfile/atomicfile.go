// Package atomicfile implements the temp-file-then-rename pattern used
// whenever the trie store's on-disk file is (re)written, so readers never
// observe a partial file: they see either the previous contents or the
// fully written replacement.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write calls fn with a freshly created temporary file in the same
// directory as path, then fsyncs and renames it over path. If fn returns
// an error, or any step fails, the temporary file is removed and path is
// left untouched.
func Write(path string, fn func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err = fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
