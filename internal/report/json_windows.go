//go:build windows

package report

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeReport writes a temp file next to path and renames it into place.
// renameio's pending files are not available on Windows.
func writeReport(path string, rep *RunReport) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hz432-report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := encodeReport(tmp, rep); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp report file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report file: %w", err)
	}
	tmp = nil

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename report file: %w", err)
	}
	return nil
}
