// Package naming maps source files to output paths under the output root
// and keeps two sources from claiming the same output in one run.
package naming

import (
	"path/filepath"
	"strings"

	"github.com/backmassage/hz432/internal/ffmpeg"
	"github.com/backmassage/hz432/internal/media"
)

// OutputPath mirrors f's relative directory under outputRoot and renames the
// file to <stem><suffix><ext>, mapping the extension through the encoder
// profile (".wma" is written as ".mp3"):
//
//	<in>/Album/Track.flac -> <out>/Album/Track_432.flac
//	<in>/old.WMA          -> <out>/old_432.mp3
func OutputPath(f media.File, outputRoot, suffix string) string {
	base := filepath.Base(f.RelPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := stem + suffix + ffmpeg.OutputExt(f.Ext)
	return filepath.Join(outputRoot, filepath.Dir(f.RelPath), name)
}
