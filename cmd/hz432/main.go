// Command hz432 converts a folder of audio files from 440 Hz to 432 Hz
// tuning with ffmpeg. It parses flags and the optional config file, locates
// the engine, validates paths and then converts, analyzes, checks or watches.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/hz432/internal/config"
	"github.com/backmassage/hz432/internal/display"
	"github.com/backmassage/hz432/internal/engine"
	"github.com/backmassage/hz432/internal/logging"
)

// version and commit are set at build time via -ldflags.
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

// Process exit codes.
const (
	exitOK             = 0
	exitFailures       = 1 // Some file failed, the run was interrupted, or bad usage.
	exitEngineNotFound = 2
)

// errFailures marks a run that completed but had per-file failures. The
// details were already reported.
var errFailures = errors.New("one or more files failed")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps its error to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errFailures):
		return exitFailures
	case errors.Is(err, engine.ErrEngineNotFound):
		fmt.Fprintf(stderr, "hz432: %v\n", err)
		fmt.Fprintln(stderr, "hz432: install ffmpeg, place it next to hz432, or pass --ffmpeg <path>")
		return exitEngineNotFound
	default:
		fmt.Fprintf(stderr, "hz432: %v\n", err)
		return exitFailures
	}
}

// app is the state shared by every subcommand once flags are resolved.
type app struct {
	cfg config.Config
	log *logging.Logger
}

// setup resolves the config (defaults, file, flags, positional paths),
// validates it and opens the logger.
func setup(cmd *cobra.Command, flags *config.Flags, args []string, inputRequired bool) (*app, error) {
	cfg := config.DefaultConfig()
	if path := flags.ConfigFile(); path != "" {
		if err := config.LoadFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	flags.Apply(cmd.Flags(), &cfg)
	if err := config.SetPaths(&cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(inputRequired); err != nil {
		return nil, err
	}

	log, err := logging.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) close() { _ = a.log.Close() }

// locate finds ffmpeg and ffprobe. It runs before any discovery.
func (a *app) locate() (*engine.Handle, error) {
	h, err := engine.Locate(engine.LocateOptions{Override: a.cfg.EnginePath})
	if err != nil {
		return nil, err
	}
	a.log.Debug().
		Str(logging.FieldFFmpeg, h.FFmpeg).
		Str(logging.FieldFFprobe, h.FFprobe).
		Str(logging.FieldSource, h.Source).
		Bool("from_path", h.FromPATH).
		Msg("engine located")
	return h, nil
}

// preparePaths checks that the input exists, creates the output directory
// (except in dry-run) and rejects an output inside the input tree.
func (a *app) preparePaths(createOutput bool) error {
	inputAbs, err := absPath(a.cfg.InputDir)
	if err != nil {
		return fmt.Errorf("input not found: %s", a.cfg.InputDir)
	}
	if fi, err := os.Stat(inputAbs); err != nil || !fi.IsDir() {
		return fmt.Errorf("input is not a directory: %s", a.cfg.InputDir)
	}

	if createOutput && !a.cfg.DryRun {
		if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("cannot create output directory %s: %w", a.cfg.OutputDir, err)
		}
	}
	outputAbs, err := absPath(a.cfg.OutputDir)
	if err != nil {
		// Dry runs and analysis never create the output directory.
		if outputAbs, err = filepath.Abs(a.cfg.OutputDir); err != nil {
			return fmt.Errorf("cannot resolve output path %s: %w", a.cfg.OutputDir, err)
		}
	}
	if err := a.cfg.ValidatePaths(inputAbs, outputAbs); err != nil {
		return fmt.Errorf("%w; choose an output path outside %s", err, a.cfg.InputDir)
	}
	return nil
}

// absPath returns the absolute path with symlinks resolved, for comparing
// input vs output hierarchy.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func printBanner(cmd *cobra.Command) {
	display.PrintBanner(cmd.ErrOrStderr(), version)
}
