// Package config holds runtime configuration: defaults, YAML file loading,
// CLI flag binding, and validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stderr is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// DefaultSuffix is appended to every output file stem ("song.mp3" -> "song_432.mp3").
const DefaultSuffix = "_432"

// OutputDirSuffix names the default output directory next to the input
// directory when none is given ("Music" -> "Music_432Hz").
const OutputDirSuffix = "_432Hz"

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally overlaid by [LoadFile], then by CLI flags, and finally checked
// by [Config.Validate] before being passed (by pointer) to the packages that
// need it.
type Config struct {
	// Paths (set from positional args or the config file).
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`

	// Engine.
	EnginePath string `yaml:"ffmpeg"` // Override: ffmpeg binary or a directory holding ffmpeg+ffprobe.

	// Walk behavior.
	Recursive    bool `yaml:"recursive"`
	SkipExisting bool `yaml:"keep"` // Default: true. Cleared by --force.
	DryRun       bool `yaml:"dry_run"`
	Jobs         int  `yaml:"jobs"` // Default: 1 (strictly sequential).

	// Encoding.
	Suffix         string `yaml:"suffix"`          // Default: "_432".
	SampleRate     int    `yaml:"sample_rate"`     // 0 keeps the source rate.
	DefaultBitrate string `yaml:"default_bitrate"` // Used when probing yields no bitrate. Default: "320k".

	// Timeouts.
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`  // Default: 15s.
	EncodeTimeout time.Duration `yaml:"encode_timeout"` // 0 disables the per-attempt bound.

	// Extra stderr regexes that mark an engine failure as "unsupported
	// feature" and trigger the safe fallback attempt.
	UnsupportedSignatures []string `yaml:"unsupported_signatures"`

	// Display and logging.
	Verbose   bool      `yaml:"verbose"`
	LogLevel  string    `yaml:"log_level"`
	ColorMode ColorMode `yaml:"color"`
	LogFile   string    `yaml:"log_file"`

	// Run artifacts.
	ReportFile  string `yaml:"report_file"`  // JSON run report.
	MetricsFile string `yaml:"metrics_file"` // Prometheus textfile.

	// Watch mode.
	WatchSettle time.Duration `yaml:"watch_settle"` // Quiet period before a new file is converted. Default: 2s.
}

// DefaultConfig returns a Config with the built-in defaults. Used as the base
// before the config file and CLI overrides are applied.
func DefaultConfig() Config {
	return Config{
		Recursive:      false,
		SkipExisting:   true,
		DryRun:         false,
		Jobs:           1,
		Suffix:         DefaultSuffix,
		SampleRate:     0,
		DefaultBitrate: "320k",
		ProbeTimeout:   15 * time.Second,
		EncodeTimeout:  0,
		ColorMode:      ColorAuto,
		WatchSettle:    2 * time.Second,
	}
}

// NormalizeDirArg strips trailing separators from a directory path.
// The filesystem root is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" || path == string(filepath.Separator) {
		return path
	}
	return strings.TrimRight(path, `/\`)
}

// DefaultOutputDir derives the sibling output directory for inputDir.
func DefaultOutputDir(inputDir string) string {
	clean := filepath.Clean(inputDir)
	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+OutputDirSuffix)
}

// Validate checks enum and numeric fields and normalizes the default
// bitrate. inputRequired is false for commands that never walk a tree
// (check, version).
func (c *Config) Validate(inputRequired bool) error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log level %q (use 'debug', 'info', 'warn' or 'error')", c.LogLevel)
		}
	}

	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1 (got %d)", c.Jobs)
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("sample rate must not be negative (got %d)", c.SampleRate)
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("probe timeout must be positive")
	}
	if c.EncodeTimeout < 0 {
		return errors.New("encode timeout must not be negative")
	}
	if c.WatchSettle < 0 {
		return errors.New("watch settle delay must not be negative")
	}
	if strings.ContainsAny(c.Suffix, `/\`) {
		return fmt.Errorf("suffix %q must not contain path separators", c.Suffix)
	}

	normalized, err := normalizeBitrate(c.DefaultBitrate)
	if err != nil {
		return err
	}
	c.DefaultBitrate = normalized

	for _, sig := range c.UnsupportedSignatures {
		if _, err := regexp.Compile(sig); err != nil {
			return fmt.Errorf("invalid unsupported signature %q: %w", sig, err)
		}
	}

	if inputRequired && c.InputDir == "" {
		return errors.New("need an input directory")
	}
	return nil
}

// DefaultBitRateBPS returns DefaultBitrate in bits per second. Validate must
// have succeeded first.
func (c *Config) DefaultBitRateBPS() int64 {
	n, _ := strconv.ParseInt(strings.TrimSuffix(c.DefaultBitrate, "k"), 10, 64)
	return n * 1000
}

// normalizeBitrate validates and canonicalizes user bitrate input.
// Accepted forms: "256", "256k", "256K", "256kbps". Output is "<n>k".
func normalizeBitrate(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", errors.New("default bitrate must not be empty")
	}
	if strings.HasSuffix(s, "kbps") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kbps"))
	} else if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid default bitrate %q (use positive Kbps value, e.g. 320k)", raw)
	}
	return fmt.Sprintf("%dk", n), nil
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved input directory. This prevents a recursive walk from
// discovering its own output files. Both arguments must be absolute,
// symlink-resolved paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}
