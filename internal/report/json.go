package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/hz432/internal/media"
)

// RunReport is the JSON document written by [JSONReporter].
type RunReport struct {
	RunID      string         `json:"run_id"`
	InputDir   string         `json:"input_dir"`
	OutputDir  string         `json:"output_dir"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Counts     map[string]int `json:"counts"`
	Files      []FileEntry    `json:"files"`
}

// FileEntry is one file in the run report.
type FileEntry struct {
	Path       string            `json:"path"`
	Outcome    media.OutcomeKind `json:"outcome"`
	OutputPath string            `json:"output_path,omitempty"`
	BitRate    int64             `json:"bitrate,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Stderr     string            `json:"stderr,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// JSONReporter accumulates events and writes the run report atomically on
// Close, so a crashed run never leaves a half-written file behind.
type JSONReporter struct {
	path   string
	report RunReport
	now    func() time.Time
}

// NewJSONReporter starts a report for one run with a fresh run id.
func NewJSONReporter(path, inputDir, outputDir string) *JSONReporter {
	r := &JSONReporter{path: path, now: time.Now}
	r.report = RunReport{
		RunID:     uuid.NewString(),
		InputDir:  inputDir,
		OutputDir: outputDir,
		StartedAt: r.now().UTC(),
		Counts:    make(map[string]int),
		Files:     []FileEntry{},
	}
	return r
}

// RunID identifies this run in logs and in the report.
func (r *JSONReporter) RunID() string { return r.report.RunID }

func (r *JSONReporter) Report(e Event) {
	r.report.Counts[e.Kind.String()]++
	r.report.Files = append(r.report.Files, FileEntry{
		Path:       e.RelativePath,
		Outcome:    e.Kind,
		OutputPath: e.Outcome.OutputPath,
		BitRate:    e.Outcome.BitRate,
		Reason:     e.Outcome.Reason,
		Stderr:     e.Outcome.Stderr,
		DurationMS: e.Outcome.Duration.Milliseconds(),
	})
}

func (r *JSONReporter) Close() error {
	r.report.FinishedAt = r.now().UTC()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	return writeReport(r.path, &r.report)
}

func encodeReport(w io.Writer, rep *RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
