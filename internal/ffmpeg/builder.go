package ffmpeg

import (
	"fmt"
	"strconv"
)

// Pitch ratio between the target and the concert reference.
const (
	TargetHz    = 432
	ReferenceHz = 440

	// DefaultSampleRate is assumed when probing could not read the source rate.
	DefaultSampleRate = 44100
)

// PitchFilter returns the audio filter that lowers pitch by 432/440 while
// keeping duration: asetrate plays the samples slower (pitch and tempo both
// drop), aresample restores the output rate and atempo undoes the tempo
// change.
func PitchFilter(sourceRate, outputRate int) string {
	shifted := float64(sourceRate) * TargetHz / ReferenceHz
	tempo := float64(ReferenceHz) / TargetHz
	return fmt.Sprintf("asetrate=%s,aresample=%d,atempo=%.6f",
		strconv.FormatFloat(shifted, 'f', 4, 64), outputRate, tempo)
}

// Attempt is a single engine invocation.
type Attempt struct {
	Tier    Tier
	Profile string // Encoder label.
	Args    []string
	BitRate int64 // bps passed to the encoder, 0 for lossless.
}

// BuildParams feeds [Build].
type BuildParams struct {
	Input      string
	Output     string
	Profile    Profile
	Tier       Tier
	BitRate    int64
	SourceRate int // Probed sample rate, 0 when unknown.
	OutputRate int // Requested output rate, 0 to follow the source.
}

// Build constructs the argument list (without the binary) for one attempt:
//
//	-hide_banner -nostdin -y -i <in> -map 0:a:0 [-map 0:v? -c:v copy | -vn]
//	-map_metadata 0 -af <pitch> <codec args> [-b:a Nk] -ar <rate> <out>
func Build(p BuildParams) Attempt {
	src := p.SourceRate
	if src <= 0 {
		src = DefaultSampleRate
	}
	out := p.OutputRate
	if p.Profile.SampleRate > 0 {
		out = p.Profile.SampleRate
	}
	if out <= 0 {
		out = src
	}

	enc := p.Profile.Encoder(p.Tier)
	args := make([]string, 0, 32)

	// --- Preamble ---
	args = append(args, "-hide_banner", "-nostdin", "-y")

	// --- Input ---
	args = append(args, "-i", p.Input)

	// --- Stream maps ---
	args = append(args, "-map", "0:a:0")
	if enc.KeepCover {
		args = append(args, "-map", "0:v?", "-c:v", "copy")
	} else {
		args = append(args, "-vn")
	}
	args = append(args, "-map_metadata", "0")

	// --- Pitch filter ---
	args = append(args, "-af", PitchFilter(src, out))

	// --- Codec ---
	args = append(args, enc.Args...)
	if !p.Profile.Lossless && p.BitRate > 0 {
		args = append(args, "-b:a", strconv.FormatInt(p.BitRate/kbps, 10)+"k")
	}
	args = append(args, "-ar", strconv.Itoa(out))

	// --- Output ---
	args = append(args, p.Output)

	return Attempt{
		Tier:    p.Tier,
		Profile: enc.Name,
		Args:    args,
		BitRate: p.BitRate,
	}
}
