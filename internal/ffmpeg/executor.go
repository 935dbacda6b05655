package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/backmassage/hz432/internal/engine"
	"github.com/backmassage/hz432/internal/logging"
	"github.com/backmassage/hz432/internal/media"
	"github.com/backmassage/hz432/internal/probe"
)

// Policy carries the run-wide encode settings.
type Policy struct {
	DefaultBitRate int64         // bps when probing found none; 0 uses the profile default.
	SampleRate     int           // Forced output rate, 0 follows the source.
	EncodeTimeout  time.Duration // Per attempt, 0 for no bound.
	DryRun         bool
}

// Converter runs the tiered encode for one file at a time. A single
// Converter may be shared by concurrent workers.
type Converter struct {
	Runner     engine.Runner
	Classifier *Classifier
	Policy     Policy
	Log        zerolog.Logger
}

// Convert produces exactly one outcome for f. It never returns Success for a
// cancelled context and removes any partial output it leaves behind.
func (c *Converter) Convert(ctx context.Context, h *engine.Handle, f media.File, outputPath string, pr probe.Result, skipExisting bool) media.Outcome {
	start := time.Now()
	log := c.Log.With().Str(logging.FieldPath, f.RelPath).Logger()

	if skipExisting {
		if _, err := os.Stat(outputPath); err == nil {
			return media.SkippedBecause(outputPath, media.ReasonOutputExists)
		}
	}

	prof, ok := ProfileFor(f.Ext)
	if !ok {
		return media.SkippedBecause(outputPath, media.ReasonUnsupportedExt)
	}

	classifier := c.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}

	var (
		rs     RetryState
		stderr string
	)
	part := partPath(outputPath)
	for tier, ok := rs.Next(); ok; tier, ok = rs.Next() {
		att := Build(BuildParams{
			Input:      f.Path,
			Output:     part,
			Profile:    prof,
			Tier:       tier,
			BitRate:    prof.TargetBitRate(tier, pr.BitRate, pr.HasBitRate, c.Policy.DefaultBitRate),
			SourceRate: pr.SampleRate,
			OutputRate: c.Policy.SampleRate,
		})
		log.Debug().
			Str(logging.FieldTier, string(att.Tier)).
			Str(logging.FieldProfile, att.Profile).
			Int64(logging.FieldBitrate, att.BitRate).
			Strs(logging.FieldArgs, att.Args).
			Msg("encode attempt")

		if c.Policy.DryRun {
			args := slices.Clone(att.Args)
			args[len(args)-1] = outputPath
			log.Info().Msgf("dry run: %s %s", h.FFmpeg, strings.Join(args, " "))
			return media.SkippedBecause(outputPath, media.ReasonDryRun)
		}

		res := c.run(ctx, h, att)
		stderr = string(res.Stderr)

		if ctx.Err() != nil {
			removePartial(part)
			return media.FailedWith(outputPath, media.ReasonCancelled, "", time.Since(start))
		}

		if res.ExitCode == 0 {
			if nonEmpty(part) {
				rs.Finish()
				if err := os.Rename(part, outputPath); err != nil {
					removePartial(part)
					return media.FailedWith(outputPath, fmt.Sprintf("finalize output: %v", err), "", time.Since(start))
				}
				if tier == TierSafe {
					return media.FellBack(outputPath, att.BitRate, rs.Trigger, time.Since(start))
				}
				return media.Succeeded(outputPath, att.BitRate, time.Since(start))
			}
			removePartial(part)
			if tier == TierSafe {
				return media.FailedWith(outputPath, media.ReasonFallbackFailed, CleanStderr(stderr), time.Since(start))
			}
			return media.FailedWith(outputPath, media.ReasonEmptyOutput, CleanStderr(stderr), time.Since(start))
		}

		removePartial(part)
		if tier == TierSafe {
			break
		}
		if rs.Advance(classifier, stderr) == RetryFallback {
			log.Warn().
				Str(logging.FieldProfile, att.Profile).
				Str("trigger", rs.Trigger).
				Msg("high-quality encode unsupported, retrying with safe settings")
			continue
		}
		return media.FailedWith(outputPath, exitReason(res), CleanStderr(stderr), time.Since(start))
	}

	return media.FailedWith(outputPath, media.ReasonFallbackFailed, CleanStderr(stderr), time.Since(start))
}

func (c *Converter) run(ctx context.Context, h *engine.Handle, att Attempt) engine.Result {
	if c.Policy.EncodeTimeout <= 0 {
		return c.Runner.Run(ctx, h.FFmpeg, att.Args)
	}
	actx, cancel := context.WithTimeout(ctx, c.Policy.EncodeTimeout)
	defer cancel()
	res := c.Runner.Run(actx, h.FFmpeg, att.Args)
	if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		res.Err = fmt.Errorf("%w: %v", context.DeadlineExceeded, res.Err)
	}
	return res
}

// exitReason describes a terminal HQ failure by how the process ended.
func exitReason(res engine.Result) string {
	switch {
	case errors.Is(res.Err, context.DeadlineExceeded):
		return "encode timed out"
	case res.ExitCode > 0:
		return fmt.Sprintf("exit status %d", res.ExitCode)
	case res.Err != nil:
		return fmt.Sprintf("engine did not run: %v", res.Err)
	default:
		return "engine killed"
	}
}

func nonEmpty(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

func removePartial(path string) {
	_ = os.Remove(path)
}

// partPath is the hidden sibling an attempt encodes into. It keeps the
// output's extension so ffmpeg still picks the muxer from it, and it only
// replaces outputPath once an attempt succeeds.
func partPath(outputPath string) string {
	dir, base := filepath.Split(outputPath)
	return filepath.Join(dir, ".part-"+base)
}
