//go:build !windows

package report

import (
	"fmt"

	"github.com/google/renameio/v2"
)

// writeReport replaces path with the encoded report: fsync, then rename, so
// readers see either the previous report or the complete new one.
func writeReport(path string, rep *RunReport) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if err := encodeReport(pf, rep); err != nil {
		return err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	return nil
}
