package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/backmassage/hz432/internal/logging"
	"github.com/backmassage/hz432/internal/media"
	"github.com/backmassage/hz432/internal/naming"
	"github.com/backmassage/hz432/internal/report"
)

// DefaultSettle is the quiet period a new file must stay unchanged before it
// is converted.
const DefaultSettle = 2 * time.Second

// Watch converts audio files as they appear under the input directory until
// ctx is cancelled. A file is converted once no write or create event has
// been seen for it for settle. Events carry Total 0 because the batch size is
// open-ended. With Recursive set, new subdirectories are watched too and any
// files already inside them are queued.
func Watch(ctx context.Context, w *Walker, rep report.Reporter, settle time.Duration) (RunStats, error) {
	var stats RunStats
	if settle <= 0 {
		settle = DefaultSettle
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return stats, fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	root := filepath.Clean(w.Options.InputDir)
	if err := addWatchDirs(watcher, root, w.Options.Recursive); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	if w.Paths == nil {
		w.Paths = naming.NewResolver()
	}
	w.Paths.Reset()

	w.Log.Info().
		Str("input", root).
		Str(logging.FieldOutput, w.Options.OutputDir).
		Dur("settle", settle).
		Msg("Watching for new audio files")

	pending := make(map[string]time.Time)
	tick := time.NewTicker(max(settle/4, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Log.Info().Int("pending", len(pending)).Msg("Watch stopped")
			LogSummary(w.Log, &stats, w.Options.DryRun)
			return stats, nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return stats, nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if hidden(filepath.Base(ev.Name)) {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if w.Options.Recursive && ev.Has(fsnotify.Create) {
					w.queueNewDir(watcher, ev.Name, pending)
				}
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return stats, nil
			}
			w.Log.Warn().Err(err).Msg("watcher error")

		case now := <-tick.C:
			for _, path := range settled(pending, now, settle) {
				delete(pending, path)
				if ctx.Err() != nil {
					break
				}
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
				f := media.NewFile(root, path, info.Size())
				o := w.processOne(ctx, f)
				stats.Total++
				stats.Add(f, o, outputSize(o))
				rep.Report(report.NewEvent(stats.Processed, 0, f, o))
			}
		}
	}
}

// settled returns the pending paths quiet for at least settle, sorted.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	return ready
}

// queueNewDir watches a directory created after startup and queues files
// that landed in it before the watch was added.
func (w *Walker) queueNewDir(watcher *fsnotify.Watcher, dir string, pending map[string]time.Time) {
	if err := addWatchDirs(watcher, dir, true); err != nil {
		w.Log.Warn().Err(err).Str(logging.FieldPath, dir).Msg("cannot watch new directory")
		return
	}
	files, err := Discover(dir, true)
	if err != nil {
		return
	}
	now := time.Now()
	for _, f := range files {
		pending[f.Path] = now
	}
}

// addWatchDirs adds root and, when recursive, every non-hidden directory
// below it.
func addWatchDirs(watcher *fsnotify.Watcher, root string, recursive bool) error {
	if !recursive {
		return watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
