package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Built-in stderr signatures of an "unsupported feature" failure: the
// engine build lacks the encoder, an option, a filter or a container/codec
// pairing the HQ attempt asked for. Any of these sends the file to the safe
// attempt; every other failure is terminal.
var builtinSignatures = []string{
	`Unknown encoder`,
	`Encoder \S+ not found`,
	`Error selecting an encoder`,
	`Requested output format .* is not a suitable`,
	`Could not find tag for codec`,
	`codec not currently supported in container`,
	`Unrecognized option`,
	`Option \S+ not found`,
	`experimental codecs are not enabled`,
	`Specified sample rate .* not supported`,
	`Error while opening encoder`,
	`is not supported by`,
	`Invalid encoder type`,
	`No such filter`,
}

// Classifier decides whether a failed attempt's stderr is an
// unsupported-feature failure. It is safe for concurrent use.
type Classifier struct {
	patterns []*regexp.Regexp
}

// NewClassifier compiles the built-in signatures plus extra (user-supplied
// regexes from the config file or --unsupported-signature).
func NewClassifier(extra []string) (*Classifier, error) {
	c := &Classifier{}
	for _, s := range append(append([]string(nil), builtinSignatures...), extra...) {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("compile signature %q: %w", s, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// DefaultClassifier uses only the built-in signatures.
func DefaultClassifier() *Classifier {
	c, _ := NewClassifier(nil)
	return c
}

// Match returns the first stderr line matching any signature.
func (c *Classifier) Match(stderr string) (string, bool) {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, re := range c.patterns {
			if re.MatchString(line) {
				return line, true
			}
		}
	}
	return "", false
}

// NoStderr replaces an empty cleaned stderr.
const NoStderr = "(no ffmpeg stderr captured)"

// MaxStderrLines bounds the diagnostics kept per failure.
const MaxStderrLines = 15

var (
	reBannerLine = regexp.MustCompile(
		`^(ffmpeg version|built with|configuration:|` +
			`lib(avutil|avcodec|avformat|avdevice|avfilter|swscale|swresample|postproc)\s)`)

	reNoiseLine = regexp.MustCompile(
		`Incorrect BOM value|Error reading comment frame|` +
			`^Press \[q\] to stop|^size=.*time=.*bitrate=`)
)

// CleanStderr drops the version banner, build configuration and known
// harmless warnings, then keeps the last MaxStderrLines meaningful lines.
func CleanStderr(stderr string) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(stderr, "\r", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || reBannerLine.MatchString(line) || reNoiseLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return NoStderr
	}
	if len(kept) > MaxStderrLines {
		kept = kept[len(kept)-MaxStderrLines:]
	}
	return strings.Join(kept, "\n")
}
