package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/backmassage/hz432/internal/check"
	"github.com/backmassage/hz432/internal/config"
	"github.com/backmassage/hz432/internal/engine"
	"github.com/backmassage/hz432/internal/ffmpeg"
	"github.com/backmassage/hz432/internal/logging"
	"github.com/backmassage/hz432/internal/pipeline"
	"github.com/backmassage/hz432/internal/probe"
	"github.com/backmassage/hz432/internal/report"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hz432 [flags] <input_dir> [output_dir]",
		Short: "Convert audio files from 440 Hz to 432 Hz tuning",
		Long: `hz432 re-tunes every supported audio file in a folder from A=440 Hz to
A=432 Hz with ffmpeg, keeping duration, format, tags and (where possible)
cover art. Outputs mirror the input tree under output_dir, which defaults
to a sibling "<input_dir>_432Hz" directory.

Supported inputs: .wav .flac .mp3 .m4a .aac .ogg .opus .wma (.wma is
written as .mp3).`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
	}
	flags := config.BindFlags(root.PersistentFlags())

	root.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, flags, args, true)
		if err != nil {
			return err
		}
		defer a.close()
		return a.convert(cmd)
	}

	root.AddCommand(
		newCheckCmd(flags),
		newAnalyzeCmd(flags),
		newWatchCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newCheckCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Locate ffmpeg and verify the encoders hz432 needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, flags, args, false)
			if err != nil {
				return err
			}
			defer a.close()

			printBanner(cmd)
			h, err := a.locate()
			if err != nil {
				return err
			}
			_, err = check.Run(cmd.Context(), engine.ExecRunner{}, h, logging.Component(a.log.Logger, "check"))
			return err
		},
	}
}

func newAnalyzeCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <input_dir>",
		Short: "Probe every file and print its bitrate without converting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, flags, args, true)
			if err != nil {
				return err
			}
			defer a.close()

			h, err := a.locate()
			if err != nil {
				return err
			}
			w, err := a.walker(h)
			if err != nil {
				return err
			}
			_, err = w.Analyze(cmd.Context(), cmd.OutOrStdout())
			return err
		},
	}
}

func newWatchCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <input_dir> [output_dir]",
		Short: "Convert new files as they appear until interrupted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, flags, args, true)
			if err != nil {
				return err
			}
			defer a.close()

			printBanner(cmd)
			h, err := a.locate()
			if err != nil {
				return err
			}
			if err := a.preparePaths(true); err != nil {
				return err
			}
			w, err := a.walker(h)
			if err != nil {
				return err
			}
			rep, log := a.reporters()
			w.Log = log

			stats, err := pipeline.Watch(cmd.Context(), w, rep, a.cfg.WatchSettle)
			if cerr := rep.Close(); cerr != nil {
				a.log.Warn().Err(cerr).Msg("closing reporters")
			}
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return errFailures
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hz432 %s (%s)\n", version, commit)
		},
	}
}

// convert is the default command: one batch pass over the input tree.
func (a *app) convert(cmd *cobra.Command) error {
	printBanner(cmd)

	h, err := a.locate()
	if err != nil {
		return err
	}
	if err := a.preparePaths(true); err != nil {
		return err
	}
	if a.cfg.DryRun {
		a.log.Warn().Msg("DRY RUN")
	}

	w, err := a.walker(h)
	if err != nil {
		return err
	}
	rep, log := a.reporters()
	w.Log = log

	stats, _, err := pipeline.Run(cmd.Context(), w, rep)
	if cerr := rep.Close(); cerr != nil {
		a.log.Warn().Err(cerr).Msg("closing reporters")
	}
	if err != nil {
		return err
	}
	if !stats.OK() {
		return errFailures
	}
	return nil
}

// walker wires the prober and converter for the located engine.
func (a *app) walker(h *engine.Handle) (*pipeline.Walker, error) {
	classifier, err := ffmpeg.NewClassifier(a.cfg.UnsupportedSignatures)
	if err != nil {
		return nil, err
	}
	runner := engine.ExecRunner{}
	base := a.log.Logger

	return &pipeline.Walker{
		Engine: h,
		Prober: &probe.Prober{
			Runner:  runner,
			Timeout: a.cfg.ProbeTimeout,
			Log:     logging.Component(base, "probe"),
		},
		Converter: &ffmpeg.Converter{
			Runner:     runner,
			Classifier: classifier,
			Policy: ffmpeg.Policy{
				DefaultBitRate: a.cfg.DefaultBitRateBPS(),
				SampleRate:     a.cfg.SampleRate,
				EncodeTimeout:  a.cfg.EncodeTimeout,
				DryRun:         a.cfg.DryRun,
			},
			Log: logging.Component(base, "ffmpeg"),
		},
		Options: pipeline.Options{
			InputDir:     a.cfg.InputDir,
			OutputDir:    a.cfg.OutputDir,
			Suffix:       a.cfg.Suffix,
			Recursive:    a.cfg.Recursive,
			SkipExisting: a.cfg.SkipExisting,
			DryRun:       a.cfg.DryRun,
			Jobs:         a.cfg.Jobs,
		},
		Log: logging.Component(base, "pipeline"),
	}, nil
}

// reporters builds the console reporter plus the optional JSON report and
// metrics textfile. The returned logger carries the run id when a JSON
// report is written.
func (a *app) reporters() (report.Reporter, zerolog.Logger) {
	log := logging.Component(a.log.Logger, "pipeline")
	var rs []report.Reporter

	if a.cfg.ReportFile != "" {
		jr := report.NewJSONReporter(a.cfg.ReportFile, a.cfg.InputDir, a.cfg.OutputDir)
		log = log.With().Str(logging.FieldRunID, jr.RunID()).Logger()
		rs = append(rs, jr)
	}
	if a.cfg.MetricsFile != "" {
		rs = append(rs, report.NewMetricsReporter(a.cfg.MetricsFile))
	}
	rs = append([]report.Reporter{&report.LogReporter{Log: log}}, rs...)
	return report.Synchronized(report.Multi(rs...)), log
}
