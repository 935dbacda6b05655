package config

// This file binds CLI flags onto a Config. Flags are parsed into a private
// copy and only the ones the user actually set are copied over the
// file-backed Config, so a config file value is never clobbered by a flag
// default.

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Flags holds the parsed flag values until [Flags.Apply] merges them.
type Flags struct {
	values     Config
	configFile string
	force      bool
}

// BindFlags registers every configuration flag on fs. Call it on the
// persistent flag set of the root command so subcommands share them.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{values: DefaultConfig()}
	v := &f.values

	fs.StringVar(&f.configFile, "config", "", "YAML config file")

	// Engine and walk behavior.
	fs.StringVar(&v.EnginePath, "ffmpeg", "", "ffmpeg binary or directory containing ffmpeg and ffprobe")
	fs.BoolVarP(&v.Recursive, "recursive", "r", v.Recursive, "Descend into subdirectories")
	fs.BoolVar(&v.SkipExisting, "keep", v.SkipExisting, "Skip files whose output already exists")
	fs.BoolVarP(&f.force, "force", "f", false, "Overwrite existing output files (same as --keep=false)")
	fs.BoolVarP(&v.DryRun, "dry-run", "n", false, "Probe and plan only; do not encode")
	fs.IntVarP(&v.Jobs, "jobs", "j", v.Jobs, "Files converted in parallel")

	// Encoding.
	fs.StringVar(&v.Suffix, "suffix", v.Suffix, "Suffix appended to output file names")
	fs.IntVar(&v.SampleRate, "sample-rate", v.SampleRate, "Output sample rate in Hz (0 keeps the source rate)")
	fs.StringVar(&v.DefaultBitrate, "default-bitrate", v.DefaultBitrate, "Bitrate used when the source bitrate is unknown")
	fs.DurationVar(&v.ProbeTimeout, "probe-timeout", v.ProbeTimeout, "Upper bound for one probe")
	fs.DurationVar(&v.EncodeTimeout, "encode-timeout", v.EncodeTimeout, "Upper bound for one encode attempt (0 = none)")
	fs.StringArrayVar(&v.UnsupportedSignatures, "unsupported-signature", nil, "Extra stderr regex that triggers the safe fallback (repeatable)")

	// Display and logging.
	fs.BoolVarP(&v.Verbose, "verbose", "v", false, "Verbose output (debug level)")
	fs.StringVar(&v.LogLevel, "log-level", "", "Log level: debug | info | warn | error")
	fs.Var(&colorModeValue{&v.ColorMode}, "color", "Color output: auto | always | never")
	fs.StringVarP(&v.LogFile, "log", "l", "", "Append logs to file")

	// Run artifacts.
	fs.StringVar(&v.ReportFile, "report", "", "Write a JSON run report to this file")
	fs.StringVar(&v.MetricsFile, "metrics", "", "Write Prometheus textfile metrics to this file")
	fs.DurationVar(&v.WatchSettle, "settle", v.WatchSettle, "Watch mode: quiet period before converting a new file")

	return f
}

// ConfigFile returns the --config value.
func (f *Flags) ConfigFile() string { return f.configFile }

// Apply copies every flag that was set on the command line into cfg.
func (f *Flags) Apply(fs *pflag.FlagSet, cfg *Config) {
	v := &f.values
	fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "ffmpeg":
			cfg.EnginePath = v.EnginePath
		case "recursive":
			cfg.Recursive = v.Recursive
		case "keep":
			cfg.SkipExisting = v.SkipExisting
		case "dry-run":
			cfg.DryRun = v.DryRun
		case "jobs":
			cfg.Jobs = v.Jobs
		case "suffix":
			cfg.Suffix = v.Suffix
		case "sample-rate":
			cfg.SampleRate = v.SampleRate
		case "default-bitrate":
			cfg.DefaultBitrate = v.DefaultBitrate
		case "probe-timeout":
			cfg.ProbeTimeout = v.ProbeTimeout
		case "encode-timeout":
			cfg.EncodeTimeout = v.EncodeTimeout
		case "unsupported-signature":
			cfg.UnsupportedSignatures = append(cfg.UnsupportedSignatures, v.UnsupportedSignatures...)
		case "verbose":
			cfg.Verbose = v.Verbose
		case "log-level":
			cfg.LogLevel = v.LogLevel
		case "color":
			cfg.ColorMode = v.ColorMode
		case "log":
			cfg.LogFile = v.LogFile
		case "report":
			cfg.ReportFile = v.ReportFile
		case "metrics":
			cfg.MetricsFile = v.MetricsFile
		case "settle":
			cfg.WatchSettle = v.WatchSettle
		}
	})
	// --force wins over --keep and the config file.
	if f.force {
		cfg.SkipExisting = false
	}
}

// SetPaths fills InputDir and OutputDir from positional args. A missing
// output dir defaults to a sibling "<input>_432Hz" directory unless the
// config file already named one.
func SetPaths(cfg *Config, args []string) error {
	switch len(args) {
	case 0:
		// Paths may come from the config file.
	case 1:
		cfg.InputDir = NormalizeDirArg(args[0])
	case 2:
		cfg.InputDir = NormalizeDirArg(args[0])
		cfg.OutputDir = NormalizeDirArg(args[1])
	default:
		return fmt.Errorf("expected <input_dir> [output_dir], got %d arguments", len(args))
	}
	if cfg.InputDir != "" && cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir(cfg.InputDir)
	}
	return nil
}

// pflag.Value adapter so ColorMode can be used with fs.Var.
type colorModeValue struct{ p *ColorMode }

func (c *colorModeValue) String() string { return string(*c.p) }
func (c *colorModeValue) Type() string   { return "mode" }
func (c *colorModeValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "auto":
		*c.p = ColorAuto
	case "always":
		*c.p = ColorAlways
	case "never":
		*c.p = ColorNever
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
	}
	return nil
}
