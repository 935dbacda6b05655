package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/hz432/internal/engine"
	"github.com/backmassage/hz432/internal/media"
	"github.com/backmassage/hz432/internal/probe"
)

func TestPitchFilter(t *testing.T) {
	tests := []struct {
		src, out int
		want     string
	}{
		{44100, 44100, "asetrate=43298.1818,aresample=44100,atempo=1.018519"},
		{48000, 48000, "asetrate=47127.2727,aresample=48000,atempo=1.018519"},
		{44100, 48000, "asetrate=43298.1818,aresample=48000,atempo=1.018519"},
	}
	for _, tt := range tests {
		if got := PitchFilter(tt.src, tt.out); got != tt.want {
			t.Errorf("PitchFilter(%d, %d) = %q, want %q", tt.src, tt.out, got, tt.want)
		}
	}
}

func TestTargetBitRate(t *testing.T) {
	mp3, _ := ProfileFor(".mp3")
	m4a, _ := ProfileFor(".m4a")
	flac, _ := ProfileFor(".flac")

	tests := []struct {
		name     string
		p        Profile
		tier     Tier
		probed   int64
		known    bool
		fallback int64
		want     int64
	}{
		{"probed bitrate used as-is", mp3, TierHQ, 192000, true, 0, 192000},
		{"probed above encoder ceiling", mp3, TierHQ, 1411000, true, 0, 320000},
		{"probed below floor", mp3, TierHQ, 8000, true, 0, 32000},
		{"unknown uses profile default", mp3, TierHQ, 0, false, 0, 320000},
		{"unknown uses configured default", mp3, TierHQ, 0, false, 192000, 192000},
		{"safe tier has a lower ceiling", m4a, TierSafe, 400000, true, 0, 256000},
		{"hq tier keeps the higher ceiling", m4a, TierHQ, 400000, true, 0, 400000},
		{"lossless ignores bitrate", flac, TierHQ, 900000, true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.p.TargetBitRate(tt.tier, tt.probed, tt.known, tt.fallback)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputExt(t *testing.T) {
	assert.Equal(t, ".mp3", OutputExt(".wma"))
	assert.Equal(t, ".mp3", OutputExt(".WMA"))
	assert.Equal(t, ".flac", OutputExt(".flac"))
	assert.Equal(t, ".txt", OutputExt(".TXT"))
}

func TestBuild(t *testing.T) {
	mp3, _ := ProfileFor(".mp3")
	a := Build(BuildParams{
		Input: "/in/a.mp3", Output: "/out/a_432.mp3",
		Profile: mp3, Tier: TierHQ, BitRate: 192000, SourceRate: 44100,
	})

	want := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "/in/a.mp3",
		"-map", "0:a:0", "-map", "0:v?", "-c:v", "copy",
		"-map_metadata", "0",
		"-af", "asetrate=43298.1818,aresample=44100,atempo=1.018519",
		"-c:a", "libmp3lame", "-compression_level", "0",
		"-b:a", "192k",
		"-ar", "44100",
		"/out/a_432.mp3",
	}
	if diff := cmp.Diff(want, a.Args); diff != "" {
		t.Errorf("Build() args mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, TierHQ, a.Tier)
	assert.Equal(t, "libmp3lame-q0", a.Profile)
	assert.Equal(t, int64(192000), a.BitRate)
}

func TestBuild_Variants(t *testing.T) {
	flac, _ := ProfileFor(".flac")
	a := Build(BuildParams{Input: "i.flac", Output: "o.flac", Profile: flac, Tier: TierSafe, SourceRate: 96000})
	assert.NotContains(t, a.Args, "-b:a", "lossless output carries no bitrate")
	assert.Contains(t, a.Args, "-vn", "safe tier drops cover art")
	assert.Equal(t, "96000", a.Args[slices.Index(a.Args, "-ar")+1])

	opus, _ := ProfileFor(".opus")
	a = Build(BuildParams{Input: "i.opus", Output: "o.opus", Profile: opus, Tier: TierHQ, BitRate: 128000, SourceRate: 44100})
	assert.Equal(t, "48000", a.Args[slices.Index(a.Args, "-ar")+1], "opus always encodes at 48 kHz")

	mp3, _ := ProfileFor(".mp3")
	a = Build(BuildParams{Input: "i.mp3", Output: "o.mp3", Profile: mp3, Tier: TierHQ, BitRate: 128000})
	assert.Contains(t, a.Args, "asetrate=43298.1818,aresample=44100,atempo=1.018519", "unknown rate assumes 44.1 kHz")

	a = Build(BuildParams{Input: "i.mp3", Output: "o.mp3", Profile: mp3, Tier: TierHQ, BitRate: 128000, SourceRate: 44100, OutputRate: 48000})
	assert.Equal(t, "48000", a.Args[slices.Index(a.Args, "-ar")+1])
}

func TestClassifier(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		stderr string
		want   bool
	}{
		{"Unknown encoder 'libmp3lame'", true},
		{"[aost#0:0] Encoder libfdk_aac not found.", true},
		{"Error selecting an encoder", true},
		{"[ogg @ 0x1] Could not find tag for codec mjpeg in stream #1, codec not currently supported in container", true},
		{"Unrecognized option 'compression_level'.", true},
		{"[opus @ 0x55] The encoder 'opus' is experimental but experimental codecs are not enabled, add '-strict -2' if you want to use it.", true},
		{"[libopus @ 0x1] Specified sample rate 44100 is not supported", true},
		{"No such filter: 'atempo'", true},
		{"/in/a.mp3: Invalid data found when processing input", false},
		{"/out/a_432.mp3: Permission denied", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.stderr, func(t *testing.T) {
			if _, got := c.Match(tt.stderr); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.stderr, got, tt.want)
			}
		})
	}
}

func TestClassifier_Extensible(t *testing.T) {
	c, err := NewClassifier([]string{`Conversion failed!`})
	require.NoError(t, err)

	line, ok := c.Match("frame=0\nConversion failed!\n")
	assert.True(t, ok)
	assert.Equal(t, "Conversion failed!", line)
	_, ok = DefaultClassifier().Match("Conversion failed!")
	assert.False(t, ok)

	_, err = NewClassifier([]string{"("})
	assert.Error(t, err)
}

func TestCleanStderr(t *testing.T) {
	in := "ffmpeg version 6.0 Copyright (c) 2000-2023\n" +
		"  built with gcc 12\n" +
		"  configuration: --enable-gpl\n" +
		"  libavutil      58.  2.100 / 58.  2.100\n" +
		"[mp3 @ 0x1] Incorrect BOM value\n" +
		"\n" +
		"Unknown encoder 'libmp3lame'\r\n"
	assert.Equal(t, "Unknown encoder 'libmp3lame'", CleanStderr(in))
	assert.Equal(t, NoStderr, CleanStderr(""))
	assert.Equal(t, NoStderr, CleanStderr("ffmpeg version n7.1\n\n"))

	var lines []string
	for i := range 20 {
		lines = append(lines, "line "+string(rune('a'+i)))
	}
	got := strings.Split(CleanStderr(strings.Join(lines, "\n")), "\n")
	require.Len(t, got, MaxStderrLines)
	assert.Equal(t, "line f", got[0], "oldest lines are dropped")
	assert.Equal(t, "line t", got[MaxStderrLines-1])
}

func TestRetryState(t *testing.T) {
	c := DefaultClassifier()

	t.Run("unsupported HQ falls back once", func(t *testing.T) {
		var rs RetryState
		tier, ok := rs.Next()
		require.True(t, ok)
		assert.Equal(t, TierHQ, tier)
		assert.Equal(t, TriedHQ, rs.State)

		assert.Equal(t, RetryFallback, rs.Advance(c, "Unknown encoder 'libvorbis'"))
		assert.Equal(t, "Unknown encoder 'libvorbis'", rs.Trigger)

		tier, ok = rs.Next()
		require.True(t, ok)
		assert.Equal(t, TierSafe, tier)
		assert.Equal(t, TriedFallback, rs.State)

		assert.Equal(t, RetryNone, rs.Advance(c, "Unknown encoder 'vorbis'"), "no third attempt")
		_, ok = rs.Next()
		assert.False(t, ok)
		assert.Equal(t, Done, rs.State)
	})

	t.Run("other HQ failure is terminal", func(t *testing.T) {
		var rs RetryState
		rs.Next()
		assert.Equal(t, RetryNone, rs.Advance(c, "Invalid data found when processing input"))
		_, ok := rs.Next()
		assert.False(t, ok)
		assert.Equal(t, Done, rs.State)
	})

	t.Run("success finishes", func(t *testing.T) {
		var rs RetryState
		rs.Next()
		rs.Finish()
		_, ok := rs.Next()
		assert.False(t, ok)
	})
}

// --- Converter ---

// step scripts one engine invocation.
type step struct {
	exit   int
	stderr string
	write  string // Bytes written to the output path (last argument) before returning.
	block  bool   // Wait for cancellation.
}

type fakeRunner struct {
	mu    sync.Mutex
	steps []step
	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, _ string, args []string) engine.Result {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	var s step
	if len(f.steps) > 0 {
		s, f.steps = f.steps[0], f.steps[1:]
	}
	f.mu.Unlock()

	if s.write != "" {
		_ = os.WriteFile(args[len(args)-1], []byte(s.write), 0o644)
	}
	if s.block {
		<-ctx.Done()
		return engine.Result{ExitCode: -1, Err: ctx.Err(), Stderr: []byte(s.stderr)}
	}
	return engine.Result{ExitCode: s.exit, Stderr: []byte(s.stderr)}
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var testHandle = &engine.Handle{FFmpeg: "/opt/ffmpeg/ffmpeg", FFprobe: "/opt/ffmpeg/ffprobe"}

func newConverter(r engine.Runner) *Converter {
	return &Converter{Runner: r, Classifier: DefaultClassifier(), Log: zerolog.Nop()}
}

func sourceFile(ext string) media.File {
	return media.File{Path: "/in/song" + ext, RelPath: "song" + ext, Ext: ext}
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestConvert_HQSuccessUsesProbedBitrate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.mp3")
	r := &fakeRunner{steps: []step{{exit: 0, write: "audio"}}}

	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".mp3"), out,
		probe.Result{BitRate: 192000, HasBitRate: true, SampleRate: 44100}, true)

	assert.Equal(t, media.Success, o.Kind)
	assert.Equal(t, out, o.OutputPath)
	assert.Equal(t, int64(192000), o.BitRate)
	require.Equal(t, 1, r.callCount())
	assert.Equal(t, "192k", argAfter(r.calls[0], "-b:a"))
}

func TestConvert_FallbackAfterUnsupported(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.ogg")
	r := &fakeRunner{steps: []step{
		{exit: 1, stderr: "Unknown encoder 'libvorbis'\n", write: "partial"},
		{exit: 0, write: "audio"},
	}}

	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".ogg"), out,
		probe.Result{BitRate: 160000, HasBitRate: true}, true)

	assert.Equal(t, media.FallbackSuccess, o.Kind)
	assert.Equal(t, int64(160000), o.BitRate)
	assert.Equal(t, "Unknown encoder 'libvorbis'", o.Reason)
	require.Equal(t, 2, r.callCount())
	assert.Equal(t, "libvorbis", argAfter(r.calls[0], "-c:a"))
	assert.Equal(t, "vorbis", argAfter(r.calls[1], "-c:a"))
	assert.Equal(t, argAfter(r.calls[0], "-af"), argAfter(r.calls[1], "-af"), "same pitch filter on both tiers")

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(b))
}

func TestConvert_OtherFailureDoesNotRetry(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.mp3")
	r := &fakeRunner{steps: []step{
		{exit: 1, stderr: "ffmpeg version 6\n/in/song.mp3: Invalid data found when processing input\n", write: "x"},
	}}

	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".mp3"), out, probe.Result{}, true)

	assert.Equal(t, media.Failed, o.Kind)
	assert.Equal(t, "exit status 1", o.Reason)
	assert.Equal(t, "/in/song.mp3: Invalid data found when processing input", o.Stderr)
	assert.Equal(t, 1, r.callCount())
	assert.NoFileExists(t, out, "partial output removed")
}

func TestConvert_FallbackAlsoFails(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.opus")
	r := &fakeRunner{steps: []step{
		{exit: 1, stderr: "Unknown encoder 'libopus'"},
		{exit: 1, stderr: "The encoder 'opus' is experimental but experimental codecs are not enabled"},
	}}

	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".opus"), out, probe.Result{}, true)

	assert.Equal(t, media.Failed, o.Kind)
	assert.Equal(t, media.ReasonFallbackFailed, o.Reason)
	assert.Contains(t, o.Stderr, "experimental codecs are not enabled", "stderr comes from the fallback attempt")
	assert.Equal(t, 2, r.callCount())
}

func TestConvert_SkipsExistingOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.mp3")
	require.NoError(t, os.WriteFile(out, []byte("previous run"), 0o644))
	r := &fakeRunner{}

	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".mp3"), out, probe.Result{}, true)

	assert.Equal(t, media.Skipped, o.Kind)
	assert.Equal(t, media.ReasonOutputExists, o.Reason)
	assert.Zero(t, r.callCount())
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(b))
}

func TestConvert_OverwritesWhenNotKeeping(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.mp3")
	require.NoError(t, os.WriteFile(out, []byte("previous run"), 0o644))
	r := &fakeRunner{steps: []step{{exit: 0, write: "fresh"}}}

	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".mp3"), out, probe.Result{}, false)
	assert.Equal(t, media.Success, o.Kind)
	assert.Equal(t, 1, r.callCount())
	assert.NotEqual(t, out, r.calls[0][len(r.calls[0])-1], "encodes into a sibling, not the output itself")
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(b))
	assert.NoFileExists(t, partPath(out))
}

func TestConvert_FailedOverwriteKeepsExisting(t *testing.T) {
	tests := []struct {
		name   string
		steps  []step
		reason string
	}{
		{"input rejected", []step{{exit: 1, stderr: "Invalid data found when processing input"}}, "exit status 1"},
		{"partial write then failure", []step{{exit: 1, write: "half a file"}}, "exit status 1"},
		{"empty output", []step{{exit: 0}}, media.ReasonEmptyOutput},
		{"fallback also fails", []step{
			{exit: 1, stderr: "Unknown encoder 'libmp3lame'"},
			{exit: 1, write: "half a file"},
		}, media.ReasonFallbackFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "song_432.mp3")
			require.NoError(t, os.WriteFile(out, []byte("previous run"), 0o644))
			r := &fakeRunner{steps: tc.steps}

			o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".mp3"), out, probe.Result{}, false)

			assert.Equal(t, media.Failed, o.Kind)
			assert.Equal(t, tc.reason, o.Reason)
			b, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "previous run", string(b))
			assert.NoFileExists(t, partPath(out))
		})
	}
}

func TestConvert_CancelledOverwriteKeepsExisting(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.flac")
	require.NoError(t, os.WriteFile(out, []byte("previous run"), 0o644))
	r := &fakeRunner{steps: []step{{block: true, write: "half a file"}}}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	o := newConverter(r).Convert(ctx, testHandle, sourceFile(".flac"), out, probe.Result{}, false)

	assert.Equal(t, media.Failed, o.Kind)
	assert.Equal(t, media.ReasonCancelled, o.Reason)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(b))
	assert.NoFileExists(t, partPath(out))
}

func TestPartPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "Album", ".part-song_432.mp3"), partPath(filepath.Join("out", "Album", "song_432.mp3")))
	assert.Equal(t, ".part-song_432.flac", partPath("song_432.flac"))
}

func TestConvert_EmptyOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.wav")
	r := &fakeRunner{steps: []step{{exit: 0}}}

	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".wav"), out, probe.Result{}, true)
	assert.Equal(t, media.Failed, o.Kind)
	assert.Equal(t, media.ReasonEmptyOutput, o.Reason)
	assert.Equal(t, 1, r.callCount())
}

func TestConvert_Cancelled(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.flac")
	r := &fakeRunner{steps: []step{{block: true, write: "half a file"}}}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	o := newConverter(r).Convert(ctx, testHandle, sourceFile(".flac"), out, probe.Result{}, true)

	assert.Equal(t, media.Failed, o.Kind)
	assert.Equal(t, media.ReasonCancelled, o.Reason)
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, partPath(out))
	assert.Equal(t, 1, r.callCount())
}

func TestConvert_EncodeTimeout(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.mp3")
	r := &fakeRunner{steps: []step{{block: true}}}
	c := newConverter(r)
	c.Policy.EncodeTimeout = 20 * time.Millisecond

	o := c.Convert(context.Background(), testHandle, sourceFile(".mp3"), out, probe.Result{}, true)
	assert.Equal(t, media.Failed, o.Kind)
	assert.Equal(t, "encode timed out", o.Reason)
}

func TestConvert_DryRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.mp3")
	r := &fakeRunner{}
	c := newConverter(r)
	c.Policy.DryRun = true

	o := c.Convert(context.Background(), testHandle, sourceFile(".mp3"), out, probe.Result{}, true)
	assert.Equal(t, media.Skipped, o.Kind)
	assert.Equal(t, media.ReasonDryRun, o.Reason)
	assert.Zero(t, r.callCount())
}

func TestConvert_WMAWrittenAsMP3(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song_432.mp3")
	r := &fakeRunner{steps: []step{{exit: 0, write: "audio"}}}

	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".wma"), out,
		probe.Result{BitRate: 128000, HasBitRate: true}, true)
	assert.Equal(t, media.Success, o.Kind)
	assert.Equal(t, "libmp3lame", argAfter(r.calls[0], "-c:a"))
}

func TestConvert_UnknownExtensionIsSkipped(t *testing.T) {
	r := &fakeRunner{}
	o := newConverter(r).Convert(context.Background(), testHandle, sourceFile(".txt"), "/out/song_432.txt", probe.Result{}, true)
	assert.Equal(t, media.Skipped, o.Kind)
	assert.Equal(t, media.ReasonUnsupportedExt, o.Reason)
	assert.Zero(t, r.callCount())
}
