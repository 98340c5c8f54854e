// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// Remove deletes the file at path. A path that does not exist is not an
// error, so Remove can be called on every cleanup path unconditionally.
// An empty path is a no-op.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveAll deletes path and everything beneath it. An empty path is a no-op.
func RemoveAll(path string) error {
	if path == "" {
		return nil
	}
	return os.RemoveAll(path)
}
