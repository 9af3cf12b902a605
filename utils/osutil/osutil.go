// Package osutil provides small filesystem helpers shared across the
// storage and metafile-caching layers.
package osutil

import (
	"os"
	"path/filepath"
)

// EnsureFilePresent creates path (and any missing parent directories) if it
// does not already exist, using perm for the created file/directories.
func EnsureFilePresent(path string, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), perm|0100); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	return f.Close()
}

// EnsureDirPresent creates dir (and any missing parents) if it does not
// already exist.
func EnsureDirPresent(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}
