package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/backmassage/hz432/internal/display"
	"github.com/backmassage/hz432/internal/term"
)

// fileRow holds the probed per-file data for the analysis table.
type fileRow struct {
	Name       string
	Codec      string
	Kbps       int64
	SampleRate int
	Duration   string
	Source     string
}

// AnalyzeSummary is what [Walker.Analyze] found.
type AnalyzeSummary struct {
	Files     int // Supported files probed.
	NoBitrate int // Files whose bitrate could not be read (the default will be used).
	Outliers  int
	Extremes  int
}

// Analyze probes every supported file without converting anything and
// prints a bitrate table to out with IQR outlier highlighting. It shows the
// bitrate each file would be encoded at before a long batch is started.
func (w *Walker) Analyze(ctx context.Context, out io.Writer) (AnalyzeSummary, error) {
	var sum AnalyzeSummary

	files, err := w.Discover()
	if err != nil {
		return sum, err
	}

	isTTY := term.IsTerminal(os.Stderr)
	var rows []fileRow
	var kbpsVals []float64

	supported := 0
	for _, f := range files {
		if f.Supported() {
			supported++
		}
	}
	if supported == 0 {
		w.Log.Warn().Msgf("No audio files found in %s", w.Options.InputDir)
		return sum, nil
	}
	w.Log.Info().Msgf("Analyzing %d files in %s", supported, w.Options.InputDir)

	current := 0
	for _, f := range files {
		if !f.Supported() {
			continue
		}
		if ctx.Err() != nil {
			if isTTY {
				clearProgress()
			}
			w.Log.Warn().Msg("Interrupted")
			return sum, ctx.Err()
		}
		current++
		printProgress(isTTY, current, supported, f.RelPath)

		pr := w.Prober.Probe(ctx, w.Engine, f)
		row := fileRow{
			Name:       f.RelPath,
			Codec:      pr.Codec,
			SampleRate: pr.SampleRate,
			Duration:   display.FormatDuration(pr.Duration),
			Source:     pr.Source,
		}
		if pr.HasBitRate {
			row.Kbps = pr.BitRate / 1000
			kbpsVals = append(kbpsVals, float64(row.Kbps))
		} else {
			sum.NoBitrate++
		}
		rows = append(rows, row)
	}
	if isTTY {
		clearProgress()
	}

	stats := computeStats(kbpsVals)
	printAnalysisTable(out, rows, stats)

	sum.Files = len(rows)
	for _, r := range rows {
		switch stats.classify(float64(r.Kbps)) {
		case extreme:
			sum.Extremes++
		case outlier:
			sum.Outliers++
		}
	}

	w.Log.Info().Msgf("Analyzed %d files", sum.Files)
	if stats.valid {
		w.Log.Info().Msgf("  Bitrate IQR: %.0f - %.0f kbps (outlier < %.0f or > %.0f)",
			stats.q1, stats.q3, stats.outlierLo, stats.outlierHi)
	}
	if sum.NoBitrate > 0 {
		w.Log.Warn().Msgf("  %d file(s) without a readable bitrate will use the default", sum.NoBitrate)
	}
	if sum.Outliers > 0 {
		w.Log.Warn().Msgf("  %d outlier(s) flagged [*]", sum.Outliers)
	}
	if sum.Extremes > 0 {
		w.Log.Error().Msgf("  %d extreme outlier(s) flagged [!]", sum.Extremes)
	}
	return sum, nil
}

// spread classifies a bitrate against the batch's interquartile range.
type spread int

const (
	typical spread = iota
	outlier        // beyond 1.5 IQR
	extreme        // beyond 3 IQR
)

func (s spread) color() string {
	switch s {
	case extreme:
		return term.Red
	case outlier:
		return term.Orange
	}
	return ""
}

func (s spread) flag() string {
	switch s {
	case extreme:
		return "[!]"
	case outlier:
		return "[*]"
	}
	return ""
}

// iqrBounds holds the fences derived from Q1 and Q3. It is only valid with
// at least four known bitrates and a non-zero IQR.
type iqrBounds struct {
	q1, q3               float64
	outlierLo, outlierHi float64
	extremeLo, extremeHi float64
	valid                bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}
	sorted := slices.Clone(vals)
	slices.Sort(sorted)

	q1, q3 := percentile(sorted, 25), percentile(sorted, 75)
	iqr := q3 - q1
	return iqrBounds{
		q1: q1, q3: q3,
		outlierLo: q1 - 1.5*iqr, outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3*iqr, extremeHi: q3 + 3*iqr,
		valid: iqr > 0,
	}
}

func (b *iqrBounds) classify(v float64) spread {
	switch {
	case !b.valid || v <= 0:
		return typical
	case v < b.extremeLo || v > b.extremeHi:
		return extreme
	case v < b.outlierLo || v > b.outlierHi:
		return outlier
	}
	return typical
}

func printAnalysisTable(out io.Writer, rows []fileRow, stats iqrBounds) {
	nameW, codecW, kbpsW := len("File"), len("Codec"), len("Bitrate")
	for _, r := range rows {
		nameW = max(nameW, len(r.Name))
		codecW = max(codecW, len(r.Codec))
		kbpsW = max(kbpsW, len(fmtKbps(r.Kbps)))
	}
	nameW = min(nameW, 50)

	header := fmt.Sprintf("  %-*s  %-*s  %-*s  %-11s  %-8s  %-7s",
		nameW, "File", codecW, "Codec", kbpsW, "Bitrate", "Sample Rate", "Duration", "Source")
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, "  "+strings.Repeat("-", len(header)-2))

	for _, r := range rows {
		name := r.Name
		if len(name) > nameW {
			name = name[:nameW-3] + "..."
		}
		rate := "n/a"
		if r.SampleRate > 0 {
			rate = fmt.Sprintf("%d Hz", r.SampleRate)
		}
		sp := stats.classify(float64(r.Kbps))
		// Pad before painting so escape bytes don't count toward the width.
		kbps := term.Paint(sp.color(), fmt.Sprintf("%-*s", kbpsW, fmtKbps(r.Kbps)))
		fmt.Fprintf(out, "  %-*s  %-*s  %s  %-11s  %-8s  %-7s %s\n",
			nameW, name, codecW, r.Codec, kbps, rate, r.Duration, r.Source,
			term.Paint(sp.color(), sp.flag()))
	}
	fmt.Fprintln(out)
}

func fmtKbps(kbps int64) string {
	if kbps <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d kbps", kbps)
}

// printProgress shows a live probe counter on a TTY (\r-overwritten line on
// stderr); otherwise it is a no-op.
func printProgress(isTTY bool, current, total int, name string) {
	if !isTTY {
		return
	}
	status := fmt.Sprintf("  Probing [%d/%d] %d%% ", current, total, current*100/total)
	if len(name) > 40 {
		name = name[:37] + "..."
	}
	status += name
	if len(status) < 80 {
		status += strings.Repeat(" ", 80-len(status))
	}
	fmt.Fprintf(os.Stderr, "\r%s", status)
}

func clearProgress() {
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", 80))
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
