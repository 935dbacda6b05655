// Package report delivers per-file outcomes to their consumers as they
// happen: the console log, a JSON run report and a Prometheus textfile.
package report

import (
	"errors"
	"fmt"
	"sync"

	"github.com/backmassage/hz432/internal/display"
	"github.com/backmassage/hz432/internal/media"
)

// Event is one finished file, delivered in discovery order.
type Event struct {
	Index        int // 1-based position in the run.
	Total        int // Number of files discovered.
	RelativePath string
	Kind         media.OutcomeKind
	Detail       string
	Outcome      media.Outcome
}

// NewEvent builds the event for the index-th of total files.
func NewEvent(index, total int, f media.File, o media.Outcome) Event {
	return Event{
		Index:        index,
		Total:        total,
		RelativePath: f.RelPath,
		Kind:         o.Kind,
		Detail:       DetailFor(o),
		Outcome:      o,
	}
}

// Reporter consumes events. Report is called from a single goroutine unless
// the reporter is wrapped with [Synchronized].
type Reporter interface {
	Report(Event)
	Close() error
}

// DetailFor renders the human-readable part of an outcome.
func DetailFor(o media.Outcome) string {
	switch o.Kind {
	case media.Success:
		return fmt.Sprintf("wrote %s (%s)", o.OutputPath, display.FormatBitrate(o.BitRate))
	case media.FallbackSuccess:
		return fmt.Sprintf("wrote %s (%s) with safe settings after: %s",
			o.OutputPath, display.FormatBitrate(o.BitRate), o.Reason)
	case media.Failed:
		return o.Reason
	case media.Skipped:
		return o.Reason
	default:
		return ""
	}
}

type multi []Reporter

// Multi fans every event out to each reporter in order.
func Multi(rs ...Reporter) Reporter { return multi(rs) }

func (m multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

func (m multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type synchronized struct {
	mu sync.Mutex
	r  Reporter
}

// Synchronized serializes calls into r.
func Synchronized(r Reporter) Reporter { return &synchronized{r: r} }

func (s *synchronized) Report(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Report(e)
}

func (s *synchronized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Close()
}

// Func adapts a function to [Reporter]; Close is a no-op.
type Func func(Event)

func (f Func) Report(e Event) { f(e) }
func (f Func) Close() error   { return nil }
