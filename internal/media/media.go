// Package media holds the data model shared by the prober, the transcoder,
// the walker and the reporters: discovered files and per-file outcomes.
package media

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// SupportedExts lists the input extensions the converter accepts. Matching
// is case-insensitive.
var SupportedExts = []string{".wav", ".flac", ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wma"}

// IsSupported reports whether ext (with leading dot, any case) is a
// supported input extension.
func IsSupported(ext string) bool {
	return slices.Contains(SupportedExts, strings.ToLower(ext))
}

// File is one regular file found under the scan root.
type File struct {
	Path    string // Absolute path.
	RelPath string // Relative to the scan root, OS separators.
	Ext     string // Lower-case extension with the dot.
	Size    int64
}

// NewFile builds a File from its absolute path and the scan root.
func NewFile(root, path string, size int64) File {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return File{
		Path:    path,
		RelPath: rel,
		Ext:     strings.ToLower(filepath.Ext(path)),
		Size:    size,
	}
}

// Supported reports whether the file's extension is convertible.
func (f File) Supported() bool { return IsSupported(f.Ext) }

// OutcomeKind classifies the result of processing one file.
type OutcomeKind int

const (
	Success         OutcomeKind = iota // High-quality attempt produced the output.
	FallbackSuccess                    // Safe attempt produced the output after HQ was unsupported.
	Failed
	Skipped
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case FallbackSuccess:
		return "fallback"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind as its lower-case name (used by the JSON report).
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (k *OutcomeKind) UnmarshalText(b []byte) error {
	for _, c := range []OutcomeKind{Success, FallbackSuccess, Failed, Skipped} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Skip reasons and failure reasons that callers match on.
const (
	ReasonUnsupportedExt = "unsupported extension"
	ReasonOutputExists   = "output exists"
	ReasonDryRun         = "dry run"
	ReasonCancelled      = "cancelled"
	ReasonEmptyOutput    = "empty output"
	ReasonFallbackFailed = "fallback also failed"
)

// Outcome is the immutable result of processing one file. Build it with
// [Succeeded], [FellBack], [FailedWith] or [SkippedBecause].
type Outcome struct {
	Kind       OutcomeKind
	OutputPath string
	BitRate    int64 // Bits per second used for the encode, 0 for lossless.
	Reason     string
	Stderr     string // Cleaned engine diagnostics (Failed only).
	Duration   time.Duration
}

// Succeeded is a Success outcome.
func Succeeded(output string, bitRate int64, d time.Duration) Outcome {
	return Outcome{Kind: Success, OutputPath: output, BitRate: bitRate, Duration: d}
}

// FellBack is a FallbackSuccess outcome. reason records why HQ was abandoned.
func FellBack(output string, bitRate int64, reason string, d time.Duration) Outcome {
	return Outcome{Kind: FallbackSuccess, OutputPath: output, BitRate: bitRate, Reason: reason, Duration: d}
}

// FailedWith is a Failed outcome carrying the cleaned stderr.
func FailedWith(output, reason, stderr string, d time.Duration) Outcome {
	return Outcome{Kind: Failed, OutputPath: output, Reason: reason, Stderr: stderr, Duration: d}
}

// SkippedBecause is a Skipped outcome.
func SkippedBecause(output, reason string) Outcome {
	return Outcome{Kind: Skipped, OutputPath: output, Reason: reason}
}

// OK reports whether the outcome produced (or legitimately kept) an output.
func (o Outcome) OK() bool { return o.Kind != Failed }
