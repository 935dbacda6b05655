package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/hz432/internal/engine"
	"github.com/backmassage/hz432/internal/logging"
	"github.com/backmassage/hz432/internal/media"
	"github.com/backmassage/hz432/internal/naming"
	"github.com/backmassage/hz432/internal/probe"
)

// ErrDiscovery wraps failures to enumerate the input tree. It is the only
// error that aborts a batch once the engine has been located.
var ErrDiscovery = errors.New("discover input files")

// Prober reads source metadata. Implemented by *probe.Prober.
type Prober interface {
	Probe(ctx context.Context, h *engine.Handle, f media.File) probe.Result
}

// Converter encodes one file. Implemented by *ffmpeg.Converter.
type Converter interface {
	Convert(ctx context.Context, h *engine.Handle, f media.File, outputPath string, pr probe.Result, skipExisting bool) media.Outcome
}

// Options controls a walk.
type Options struct {
	InputDir     string
	OutputDir    string
	Suffix       string // Appended to every output stem.
	Recursive    bool
	SkipExisting bool
	DryRun       bool // Don't create output directories.
	Jobs         int  // Concurrent conversions; <= 1 is strictly sequential.
}

// Walker drives one probe and one conversion per discovered file.
type Walker struct {
	Engine    *engine.Handle
	Prober    Prober
	Converter Converter
	Paths     *naming.Resolver
	Options   Options
	Log       zerolog.Logger
}

// Discover enumerates the input tree.
func (w *Walker) Discover() ([]media.File, error) {
	return Discover(w.Options.InputDir, w.Options.Recursive)
}

// Walk discovers the input tree and returns the lazy outcome sequence for
// it. Each call re-discovers, so a Walker can be walked again.
func (w *Walker) Walk(ctx context.Context) (iter.Seq2[media.File, media.Outcome], error) {
	files, err := w.Discover()
	if err != nil {
		return nil, err
	}
	return w.Process(ctx, files), nil
}

// Process yields exactly one outcome per file, in the order of files,
// regardless of Jobs. Nothing runs until the sequence is ranged over.
// Iteration stops early when ctx is cancelled; the file in flight at that
// moment is reported as cancelled.
func (w *Walker) Process(ctx context.Context, files []media.File) iter.Seq2[media.File, media.Outcome] {
	return func(yield func(media.File, media.Outcome) bool) {
		if w.Paths == nil {
			w.Paths = naming.NewResolver()
		}
		w.Paths.Reset()

		if w.Options.Jobs <= 1 {
			for _, f := range files {
				if ctx.Err() != nil {
					return
				}
				if !yield(f, w.processOne(ctx, f)) {
					return
				}
			}
			return
		}
		w.processParallel(ctx, files, yield)
	}
}

// processParallel caps concurrent conversions at Jobs and re-serializes
// outcomes into discovery order before yielding them.
func (w *Walker) processParallel(ctx context.Context, files []media.File, yield func(media.File, media.Outcome) bool) {
	ctx, cancel := context.WithCancel(ctx)

	// Output paths are claimed up front so collision suffixes do not depend
	// on worker scheduling.
	outputs := make([]string, len(files))
	for i, f := range files {
		outputs[i] = w.claim(f)
	}

	results := make([]chan media.Outcome, len(files))
	for i := range results {
		results[i] = make(chan media.Outcome, 1)
	}

	var g errgroup.Group
	g.SetLimit(w.Options.Jobs)
	scheduled := make(chan struct{})
	go func() {
		defer close(scheduled)
		for i, f := range files {
			if ctx.Err() != nil {
				for _, ch := range results[i:] {
					close(ch)
				}
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					close(results[i])
					return nil
				}
				results[i] <- w.convert(ctx, f, outputs[i])
				return nil
			})
		}
		_ = g.Wait()
	}()
	defer func() {
		cancel()
		<-scheduled
	}()

	for i, f := range files {
		o, ok := <-results[i]
		if !ok {
			return
		}
		if !yield(f, o) {
			return
		}
	}
}

func (w *Walker) processOne(ctx context.Context, f media.File) media.Outcome {
	return w.convert(ctx, f, w.claim(f))
}

func (w *Walker) claim(f media.File) string {
	return w.Paths.Claim(f.Path, naming.OutputPath(f, w.Options.OutputDir, w.Options.Suffix))
}

func (w *Walker) convert(ctx context.Context, f media.File, out string) media.Outcome {
	if !f.Supported() {
		return media.SkippedBecause(out, media.ReasonUnsupportedExt)
	}
	if w.Options.SkipExisting {
		if _, err := os.Stat(out); err == nil {
			return media.SkippedBecause(out, media.ReasonOutputExists)
		}
	}
	if !w.Options.DryRun {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return media.FailedWith(out, fmt.Sprintf("create output directory: %v", err), "", 0)
		}
	}

	pr := w.Prober.Probe(ctx, w.Engine, f)
	w.Log.Debug().
		Str(logging.FieldPath, f.RelPath).
		Int64(logging.FieldBitrate, pr.BitRate).
		Int(logging.FieldSampleRate, pr.SampleRate).
		Str(logging.FieldSource, pr.Source).
		Msg("probed")

	if ctx.Err() != nil {
		return media.FailedWith(out, media.ReasonCancelled, "", 0)
	}
	return w.Converter.Convert(ctx, w.Engine, f, out, pr, w.Options.SkipExisting)
}
