package report

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/backmassage/hz432/internal/logging"
	"github.com/backmassage/hz432/internal/media"
)

// LogReporter writes one log line per file:
//
//	[3/12] Album/Track.flac: success wrote ... (lossless)
//
// Failures additionally log the cleaned engine stderr line by line.
type LogReporter struct {
	Log zerolog.Logger
}

func (l *LogReporter) Report(e Event) {
	var ev *zerolog.Event
	switch e.Kind {
	case media.Success:
		ev = l.Log.Info()
	case media.FallbackSuccess, media.Skipped:
		ev = l.Log.Warn()
	default:
		ev = l.Log.Error()
	}
	// Watch mode has no known total.
	pos := fmt.Sprintf("[%d/%d]", e.Index, e.Total)
	if e.Total == 0 {
		pos = fmt.Sprintf("[%d]", e.Index)
	}
	ev.Str(logging.FieldRel, e.RelativePath).
		Str(logging.FieldOutcome, e.Kind.String()).
		Dur(logging.FieldElapsed, e.Outcome.Duration).
		Msgf("%s %s: %s %s", pos, e.RelativePath, e.Kind, e.Detail)

	if e.Kind == media.Failed && e.Outcome.Stderr != "" {
		for _, line := range strings.Split(e.Outcome.Stderr, "\n") {
			l.Log.Error().Str(logging.FieldRel, e.RelativePath).Msg("  " + line)
		}
	}
}

func (l *LogReporter) Close() error { return nil }
