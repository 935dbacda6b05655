package probe

import "time"

// Result is the best-effort metadata for one source file. Fields the engine
// could not report are left at their zero value.
type Result struct {
	BitRate    int64 // Bits per second. Valid only when HasBitRate is set.
	HasBitRate bool
	SampleRate int           // Hz, 0 when unknown.
	Duration   time.Duration // 0 when unknown.
	Codec      string
	Source     string // SourceFFprobe, SourceFFmpeg or SourceNone.
}

// Where the reported bitrate came from.
const (
	SourceFFprobe = "ffprobe"
	SourceFFmpeg  = "ffmpeg"
	SourceNone    = "none"
)

// merge fills fields missing from r with those of other.
func (r Result) merge(other Result) Result {
	if !r.HasBitRate && other.HasBitRate {
		r.BitRate, r.HasBitRate = other.BitRate, true
	}
	if r.SampleRate == 0 {
		r.SampleRate = other.SampleRate
	}
	if r.Duration == 0 {
		r.Duration = other.Duration
	}
	if r.Codec == "" {
		r.Codec = other.Codec
	}
	return r
}
