package ffmpeg

// AttemptState tracks how far a single file has progressed through the
// tiered attempts.
type AttemptState int

const (
	NotStarted    AttemptState = iota
	TriedHQ                    // HQ attempt ran.
	TriedFallback              // Safe attempt ran.
	Done                       // No further attempt will run.
)

func (s AttemptState) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case TriedHQ:
		return "tried-hq"
	case TriedFallback:
		return "tried-fallback"
	case Done:
		return "done"
	default:
		return "invalid"
	}
}

// RetryAction is the classifier's verdict on a failed attempt.
type RetryAction int

const (
	RetryNone     RetryAction = iota // Terminal failure.
	RetryFallback                    // Run the safe attempt next.
)

// RetryState walks NotStarted -> TriedHQ -> TriedFallback -> Done. Only an
// HQ failure whose stderr matches an unsupported-feature signature moves on
// to the safe attempt.
type RetryState struct {
	State    AttemptState
	Trigger  string // Stderr line that caused the fallback.
	fallback bool
}

// Next returns the tier to run, or false once the file is finished.
func (s *RetryState) Next() (Tier, bool) {
	switch s.State {
	case NotStarted:
		s.State = TriedHQ
		return TierHQ, true
	case TriedHQ:
		if s.fallback {
			s.fallback = false
			s.State = TriedFallback
			return TierSafe, true
		}
	}
	s.State = Done
	return "", false
}

// Advance classifies stderr from a failed attempt. After the safe attempt
// it always returns RetryNone.
func (s *RetryState) Advance(c *Classifier, stderr string) RetryAction {
	if s.State == TriedHQ {
		if line, ok := c.Match(stderr); ok {
			s.Trigger = line
			s.fallback = true
			return RetryFallback
		}
	}
	s.State = Done
	return RetryNone
}

// Finish marks the file as done after a successful attempt.
func (s *RetryState) Finish() { s.State = Done }
