// Package fileutil holds small filesystem helpers shared by the file stores.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic replaces path with data so readers see either the old
// document or the complete new one. The temp file lives next to path, which
// keeps the rename on one filesystem, and perm is applied as given even when
// path already exists with other permissions.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	pending, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(dir),
		renameio.WithStaticPermissions(perm),
	)
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer pending.Cleanup()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", pending.Name(), err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
