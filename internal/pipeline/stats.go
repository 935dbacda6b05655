package pipeline

import "github.com/backmassage/hz432/internal/media"

// RunStats tracks aggregate counters and byte totals across a batch run.
type RunStats struct {
	Total            int // Files discovered.
	Processed        int // Outcomes received.
	Succeeded        int
	FellBack         int
	Skipped          int
	Failed           int
	TotalInputBytes  int64 // Sources that produced an output.
	TotalOutputBytes int64
	Interrupted      bool
}

// Add tallies one outcome.
func (s *RunStats) Add(f media.File, o media.Outcome, outputSize int64) {
	s.Processed++
	switch o.Kind {
	case media.Success:
		s.Succeeded++
	case media.FallbackSuccess:
		s.FellBack++
	case media.Skipped:
		s.Skipped++
		return
	default:
		s.Failed++
		return
	}
	s.TotalInputBytes += f.Size
	s.TotalOutputBytes += outputSize
}

// Converted counts files that produced an output.
func (s *RunStats) Converted() int { return s.Succeeded + s.FellBack }

// OK reports whether no file failed and the run was not interrupted.
func (s *RunStats) OK() bool { return s.Failed == 0 && !s.Interrupted }
