// Package probe reads the source bitrate, sample rate and duration of an
// audio file through the engine. Probing is best-effort: every failure
// degrades to an empty [Result].
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/backmassage/hz432/internal/engine"
	"github.com/backmassage/hz432/internal/logging"
	"github.com/backmassage/hz432/internal/media"
)

// DefaultTimeout bounds a single probe child process.
const DefaultTimeout = 15 * time.Second

// Prober runs ffprobe, and ffmpeg's input banner as a fallback.
type Prober struct {
	Runner  engine.Runner
	Timeout time.Duration
	Log     zerolog.Logger
}

// Probe never fails. When ffprobe errors, times out or reports no bitrate,
// the ffmpeg "-i" banner is parsed instead; fields neither source reports
// stay zero and Source is SourceNone.
func (p *Prober) Probe(ctx context.Context, h *engine.Handle, f media.File) Result {
	res := p.ffprobe(ctx, h, f)
	if res.HasBitRate {
		res.Source = SourceFFprobe
		return res
	}
	if ctx.Err() != nil {
		res.Source = SourceNone
		return res
	}

	banner := p.banner(ctx, h, f)
	res = res.merge(banner)
	if banner.HasBitRate {
		res.Source = SourceFFmpeg
	} else {
		res.Source = SourceNone
		p.Log.Warn().Str(logging.FieldPath, f.RelPath).Msg("could not determine source bitrate")
	}
	return res
}

func (p *Prober) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p *Prober) ffprobe(ctx context.Context, h *engine.Handle, f media.File) Result {
	pctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	out := p.Runner.Run(pctx, h.FFprobe, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		"-select_streams", "a:0",
		f.Path,
	})
	if out.ExitCode != 0 {
		p.Log.Debug().
			Str(logging.FieldPath, f.RelPath).
			Int(logging.FieldExit, out.ExitCode).
			Bool("timed_out", pctx.Err() != nil).
			Msg("ffprobe failed")
		return Result{}
	}
	r, err := ParseJSON(out.Stdout)
	if err != nil {
		p.Log.Debug().Err(err).Str(logging.FieldPath, f.RelPath).Msg("ffprobe output unreadable")
		return Result{}
	}
	return r
}

// banner runs "ffmpeg -i <file>" with no output. ffmpeg exits non-zero
// ("At least one output file must be specified") but still prints the
// input description, so the exit code is ignored.
func (p *Prober) banner(ctx context.Context, h *engine.Handle, f media.File) Result {
	pctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	out := p.Runner.Run(pctx, h.FFmpeg, []string{"-hide_banner", "-nostdin", "-i", f.Path})
	return ParseBanner(string(out.Stderr))
}

// ParseJSON converts ffprobe JSON output into a Result. The first audio
// stream's bit_rate wins over the container's.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (Result, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	var r Result
	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType != "" && s.CodecType != "audio" {
			continue
		}
		r.Codec = s.CodecName
		r.SampleRate = parseInt(s.SampleRate)
		if br := parseInt64(s.BitRate); br > 0 {
			r.BitRate, r.HasBitRate = br, true
		}
		r.Duration = parseSeconds(s.Duration)
		break
	}
	if !r.HasBitRate {
		if br := parseInt64(raw.Format.BitRate); br > 0 {
			r.BitRate, r.HasBitRate = br, true
		}
	}
	if d := parseSeconds(raw.Format.Duration); d > 0 {
		r.Duration = d
	}
	return r, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitRate    string `json:"bit_rate"`
	Duration   string `json:"duration"`
}

// Banner patterns, e.g.
//
//	Duration: 00:03:25.12, start: 0.025057, bitrate: 320 kb/s
//	Stream #0:0: Audio: mp3, 44100 Hz, stereo, fltp, 320 kb/s
var (
	reAudioLine = regexp.MustCompile(`Stream #\d+:\d+.*?: Audio: ([A-Za-z0-9_]+)[^\n]*`)
	reHz        = regexp.MustCompile(`(\d+)\s+Hz`)
	reKbps      = regexp.MustCompile(`(\d+)\s+kb/s`)
	reDuration  = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
)

// ParseBanner extracts what it can from ffmpeg's human-readable input
// description. The audio stream line is preferred; any "kb/s" figure in the
// output is used when the stream line carries none.
func ParseBanner(stderr string) Result {
	var r Result

	if m := reAudioLine.FindStringSubmatch(stderr); m != nil {
		r.Codec = m[1]
		line := m[0]
		if hz := reHz.FindStringSubmatch(line); hz != nil {
			r.SampleRate = parseInt(hz[1])
		}
		if kb := reKbps.FindStringSubmatch(line); kb != nil {
			if n := parseInt64(kb[1]); n > 0 {
				r.BitRate, r.HasBitRate = n*1000, true
			}
		}
	}
	if r.SampleRate == 0 {
		if hz := reHz.FindStringSubmatch(stderr); hz != nil {
			r.SampleRate = parseInt(hz[1])
		}
	}
	if !r.HasBitRate {
		if kb := reKbps.FindStringSubmatch(stderr); kb != nil {
			if n := parseInt64(kb[1]); n > 0 {
				r.BitRate, r.HasBitRate = n*1000, true
			}
		}
	}
	if m := reDuration.FindStringSubmatch(stderr); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		s, _ := strconv.ParseFloat(m[3], 64)
		r.Duration = time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute +
			time.Duration(math.Round(s*float64(time.Second)))
	}
	return r
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 0
	}
	return time.Duration(math.Round(f * float64(time.Second)))
}
