// Package check provides the system diagnostics behind the "check" command:
// where the engine was found, its version, and which of the encoders the
// conversion profiles rely on are compiled in.
package check

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/backmassage/hz432/internal/engine"
	"github.com/backmassage/hz432/internal/ffmpeg"
)

// ErrMissingEncoders is returned by [Run] when a high-quality or safe encoder
// used by at least one profile is not available.
var ErrMissingEncoders = errors.New("required encoders missing")

// commandTimeout bounds each diagnostic ffmpeg call.
const commandTimeout = 10 * time.Second

// Report is the outcome of a system check.
type Report struct {
	Engine   *engine.Handle
	Version  string   // First line of "ffmpeg -version".
	Encoders []string // Encoder names the engine lists.
	Missing  []Missing
}

// Missing is one profile encoder the engine does not provide.
type Missing struct {
	Ext     string
	Tier    ffmpeg.Tier
	Encoder string
}

// OK reports whether every profile can use both tiers.
func (r *Report) OK() bool { return len(r.Missing) == 0 }

// encoderLine matches one row of "ffmpeg -encoders", e.g.
// " A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3)".
var encoderLine = regexp.MustCompile(`^\s*A[.A-Z]{5}\s+(\S+)`)

// Run queries the engine and logs a readable summary. It is informational:
// only a missing encoder or an engine that cannot run produce an error.
func Run(ctx context.Context, r engine.Runner, h *engine.Handle, log zerolog.Logger) (*Report, error) {
	rep := &Report{Engine: h}

	log.Info().Msg("=== System Check ===")
	origin := h.Source
	if h.FromPATH {
		origin += " (PATH)"
	}
	log.Info().Str("ffmpeg", h.FFmpeg).Str("ffprobe", h.FFprobe).Msgf("Engine found via %s", origin)

	res := run(ctx, r, h.FFmpeg, "-hide_banner", "-version")
	if res.ExitCode != 0 {
		return rep, fmt.Errorf("ffmpeg -version failed: %s", failure(res))
	}
	rep.Version = firstLine(string(res.Stdout))
	log.Info().Msgf("ffmpeg: %s", rep.Version)

	if res := run(ctx, r, h.FFprobe, "-hide_banner", "-version"); res.ExitCode != 0 {
		log.Warn().Msgf("ffprobe -version failed (%s); probing will fall back to ffmpeg", failure(res))
	}

	res = run(ctx, r, h.FFmpeg, "-hide_banner", "-encoders")
	if res.ExitCode != 0 {
		return rep, fmt.Errorf("ffmpeg -encoders failed: %s", failure(res))
	}
	rep.Encoders = ParseEncoders(string(res.Stdout))
	rep.Missing = MissingEncoders(rep.Encoders)

	for _, ext := range ffmpeg.Extensions() {
		p, _ := ffmpeg.ProfileFor(ext)
		ev := log.Info()
		state := "ok"
		if m := missingFor(rep.Missing, ext); len(m) > 0 {
			ev = log.Warn()
			state = "missing " + strings.Join(m, ", ")
		}
		ev.Msgf("  %-5s hq=%s safe=%s: %s", ext, codecOf(p.HQ), codecOf(p.Safe), state)
	}

	if !rep.OK() {
		return rep, fmt.Errorf("%w: %d", ErrMissingEncoders, len(rep.Missing))
	}
	log.Info().Msg("All encoders available")
	return rep, nil
}

// ParseEncoders extracts the audio encoder names from "ffmpeg -encoders".
func ParseEncoders(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if m := encoderLine.FindStringSubmatch(line); m != nil && m[1] != "=" {
			names = append(names, m[1])
		}
	}
	return names
}

// MissingEncoders lists every profile tier whose codec is not in available.
func MissingEncoders(available []string) []Missing {
	var missing []Missing
	for _, ext := range ffmpeg.Extensions() {
		p, _ := ffmpeg.ProfileFor(ext)
		for _, tier := range []ffmpeg.Tier{ffmpeg.TierHQ, ffmpeg.TierSafe} {
			codec := codecOf(p.Encoder(tier))
			if codec != "" && !slices.Contains(available, codec) {
				missing = append(missing, Missing{Ext: ext, Tier: tier, Encoder: codec})
			}
		}
	}
	return missing
}

func missingFor(missing []Missing, ext string) []string {
	var out []string
	for _, m := range missing {
		if m.Ext == ext {
			out = append(out, fmt.Sprintf("%s (%s)", m.Encoder, m.Tier))
		}
	}
	return out
}

// codecOf returns the value of the encoder's "-c:a" argument.
func codecOf(e ffmpeg.Encoder) string {
	for i, a := range e.Args {
		if a == "-c:a" && i+1 < len(e.Args) {
			return e.Args[i+1]
		}
	}
	return ""
}

func run(ctx context.Context, r engine.Runner, name string, args ...string) engine.Result {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return r.Run(ctx, name, args)
}

func failure(res engine.Result) string {
	if res.Err != nil && res.ExitCode < 0 {
		return res.Err.Error()
	}
	if s := firstLine(string(res.Stderr)); s != "" {
		return s
	}
	return fmt.Sprintf("exit status %d", res.ExitCode)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
