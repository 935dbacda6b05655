// Package pipeline walks the input tree, converts each audio file through the
// engine and feeds every outcome to a reporter as soon as it is known.
package pipeline

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/backmassage/hz432/internal/display"
	"github.com/backmassage/hz432/internal/logging"
	"github.com/backmassage/hz432/internal/media"
	"github.com/backmassage/hz432/internal/report"
)

// Result pairs a file with its outcome.
type Result struct {
	File    media.File
	Outcome media.Outcome
}

// Run is the top-level batch entry point. It discovers files, converts them
// in discovery order, reports each outcome immediately and returns the
// aggregate stats and the ordered results. Only a discovery failure is
// returned as an error; per-file problems are outcomes.
func Run(ctx context.Context, w *Walker, rep report.Reporter) (RunStats, []Result, error) {
	var stats RunStats

	files, err := w.Discover()
	if err != nil {
		return stats, nil, err
	}
	stats.Total = len(files)
	logBatchHeader(w, &stats)

	results := make([]Result, 0, len(files))
	for f, o := range w.Process(ctx, files) {
		stats.Add(f, o, outputSize(o))
		rep.Report(report.NewEvent(stats.Processed, stats.Total, f, o))
		results = append(results, Result{File: f, Outcome: o})
	}
	if ctx.Err() != nil {
		stats.Interrupted = true
		w.Log.Warn().Int("remaining", stats.Total-stats.Processed).Msg("Interrupted")
	}

	LogSummary(w.Log, &stats, w.Options.DryRun)
	return stats, results, nil
}

func outputSize(o media.Outcome) int64 {
	if o.Kind != media.Success && o.Kind != media.FallbackSuccess {
		return 0
	}
	fi, err := os.Stat(o.OutputPath)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// --- Logging helpers ---

func logBatchHeader(w *Walker, stats *RunStats) {
	mode := "sequential"
	if w.Options.Jobs > 1 {
		mode = "parallel"
	}
	w.Log.Info().
		Str("input", w.Options.InputDir).
		Str(logging.FieldOutput, w.Options.OutputDir).
		Bool("recursive", w.Options.Recursive).
		Bool("keep", w.Options.SkipExisting).
		Int("jobs", w.Options.Jobs).
		Msgf("Found %d files (%s)", stats.Total, mode)
	if w.Engine != nil {
		w.Log.Debug().
			Str(logging.FieldFFmpeg, w.Engine.FFmpeg).
			Str(logging.FieldFFprobe, w.Engine.FFprobe).
			Str(logging.FieldSource, w.Engine.Source).
			Msg("engine")
	}
}

// LogSummary writes the end-of-run summary.
func LogSummary(log zerolog.Logger, stats *RunStats, dryRun bool) {
	ev := log.Info()
	if stats.Failed > 0 {
		ev = log.Warn()
	}
	ev.Int("succeeded", stats.Succeeded).
		Int("fallback", stats.FellBack).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msgf("Done: %d converted, %d skipped, %d failed (%d of %d files)",
			stats.Converted(), stats.Skipped, stats.Failed, stats.Processed, stats.Total)

	if dryRun || stats.Converted() == 0 {
		return
	}
	log.Info().Msgf("  Input %s -> output %s",
		display.FormatBytes(stats.TotalInputBytes),
		display.FormatBytes(stats.TotalOutputBytes))
}
