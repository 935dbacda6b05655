// Package engine finds the ffmpeg/ffprobe executable pair and runs it as a
// child process.
package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrEngineNotFound is returned by [Locate] when no candidate directory holds
// both executables. It is fatal for the whole batch.
var ErrEngineNotFound = errors.New("ffmpeg/ffprobe not found")

// Handle is the resolved executable pair. It is created once per run and
// shared read-only by every conversion.
type Handle struct {
	FFmpeg   string // Absolute path to the transcoder.
	FFprobe  string // Absolute path to the prober.
	FromPATH bool   // Found through the PATH search rather than a bundled/override location.
	Source   string // Provider that matched: "override", "app", "bundle" or "path".
}

// FileSystem is the subset of filesystem access the locator needs.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

// OSFileSystem is the real filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

// LocateOptions feeds [Locate]. Zero values fall back to the running
// process: AppDir to the directory of os.Executable, PathEnv to $PATH and FS
// to [OSFileSystem].
type LocateOptions struct {
	Override string // --ffmpeg: a binary or a directory.
	AppDir   string
	PathEnv  string
	FS       FileSystem

	// GOOS selects executable naming and permission rules. Defaults to
	// runtime.GOOS.
	GOOS string
}

// Candidate is one directory the locator will inspect.
type Candidate struct {
	Dir      string
	FromPATH bool
	Source   string
}

// provider yields candidate directories in priority order.
type provider func(opts *LocateOptions) []Candidate

var providers = []provider{
	overrideCandidates,
	appDirCandidates,
	bundleCandidates,
	pathCandidates,
}

// Locate walks the candidate providers in order (override, application
// directory, ffmpeg* bundle subdirectories, PATH) and returns the first
// directory holding both executables.
func Locate(opts LocateOptions) (*Handle, error) {
	if opts.FS == nil {
		opts.FS = OSFileSystem{}
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.AppDir == "" {
		if exe, err := os.Executable(); err == nil {
			opts.AppDir = filepath.Dir(exe)
		}
	}
	if opts.PathEnv == "" {
		opts.PathEnv = os.Getenv("PATH")
	}

	var searched []string
	for _, p := range providers {
		for _, c := range p(&opts) {
			searched = append(searched, c.Dir)
			ffmpeg := filepath.Join(c.Dir, exeName("ffmpeg", opts.GOOS))
			ffprobe := filepath.Join(c.Dir, exeName("ffprobe", opts.GOOS))
			if !isExecutable(opts.FS, ffmpeg, opts.GOOS) || !isExecutable(opts.FS, ffprobe, opts.GOOS) {
				continue
			}
			return &Handle{
				FFmpeg:   absPath(ffmpeg),
				FFprobe:  absPath(ffprobe),
				FromPATH: c.FromPATH,
				Source:   c.Source,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w (searched %d locations: %s)",
		ErrEngineNotFound, len(searched), strings.Join(searched, ", "))
}

// overrideCandidates accepts either the binary itself or a directory. A
// directory is searched directly, in its bin/ and in each immediate
// subdirectory (and that subdirectory's bin/).
func overrideCandidates(opts *LocateOptions) []Candidate {
	if opts.Override == "" {
		return nil
	}
	dir := opts.Override
	if fi, err := opts.FS.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}

	out := []Candidate{
		{Dir: dir, Source: "override"},
		{Dir: filepath.Join(dir, "bin"), Source: "override"},
	}
	entries, err := opts.FS.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "bin" {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		out = append(out,
			Candidate{Dir: sub, Source: "override"},
			Candidate{Dir: filepath.Join(sub, "bin"), Source: "override"},
		)
	}
	return out
}

func appDirCandidates(opts *LocateOptions) []Candidate {
	if opts.AppDir == "" {
		return nil
	}
	return []Candidate{{Dir: opts.AppDir, Source: "app"}}
}

// bundleCandidates matches vendor-versioned folders such as
// "ffmpeg-6.0-win64" next to the application, in lexical order.
func bundleCandidates(opts *LocateOptions) []Candidate {
	if opts.AppDir == "" {
		return nil
	}
	entries, err := opts.FS.ReadDir(opts.AppDir)
	if err != nil {
		return nil
	}
	var out []Candidate
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(strings.ToLower(e.Name()), "ffmpeg") {
			continue
		}
		dir := filepath.Join(opts.AppDir, e.Name())
		out = append(out,
			Candidate{Dir: dir, Source: "bundle"},
			Candidate{Dir: filepath.Join(dir, "bin"), Source: "bundle"},
		)
	}
	return out
}

func pathCandidates(opts *LocateOptions) []Candidate {
	var out []Candidate
	for _, dir := range filepath.SplitList(opts.PathEnv) {
		if dir == "" {
			continue
		}
		out = append(out, Candidate{Dir: dir, FromPATH: true, Source: "path"})
	}
	return out
}

func exeName(base, goos string) string {
	if goos == "windows" {
		return base + ".exe"
	}
	return base
}

// isExecutable requires a regular file and, outside Windows, any execute bit.
func isExecutable(fsys FileSystem, path, goos string) bool {
	fi, err := fsys.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	if goos == "windows" {
		return true
	}
	return fi.Mode().Perm()&0o111 != 0
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
