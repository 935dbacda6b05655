package check

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/hz432/internal/engine"
	"github.com/backmassage/hz432/internal/ffmpeg"
)

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
 A....D flac                 FLAC (Free Lossless Audio Codec)
 A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3) (codec mp3)
 A..X.D opus                 Opus
 A....D libopus              libopus Opus (codec opus)
 A....D pcm_s16le            PCM signed 16-bit little-endian
 A....D pcm_s24le            PCM signed 24-bit little-endian
 A..X.D vorbis               Vorbis
 A....D libvorbis            libvorbis (codec vorbis)
`

var testHandle = &engine.Handle{FFmpeg: "/opt/ffmpeg/ffmpeg", FFprobe: "/opt/ffmpeg/ffprobe", Source: "override"}

func TestParseEncoders(t *testing.T) {
	got := ParseEncoders(encodersOutput)
	assert.Equal(t, []string{"aac", "flac", "libmp3lame", "opus", "libopus", "pcm_s16le", "pcm_s24le", "vorbis", "libvorbis"}, got)
	assert.NotContains(t, got, "libx264")
}

func TestMissingEncoders(t *testing.T) {
	all := ParseEncoders(encodersOutput)
	assert.Empty(t, MissingEncoders(all))

	without := slices.DeleteFunc(slices.Clone(all), func(s string) bool { return s == "libvorbis" })
	assert.Equal(t, []Missing{{Ext: ".ogg", Tier: ffmpeg.TierHQ, Encoder: "libvorbis"}}, MissingEncoders(without))

	// libmp3lame backs both tiers of .mp3 and .wma.
	without = slices.DeleteFunc(slices.Clone(all), func(s string) bool { return s == "libmp3lame" })
	assert.Len(t, MissingEncoders(without), 4)
}

func scripted(encoders string, versionExit int) engine.Runner {
	return engine.RunnerFunc(func(_ context.Context, name string, args []string) engine.Result {
		switch {
		case slices.Contains(args, "-version"):
			return engine.Result{ExitCode: versionExit, Stdout: []byte("ffmpeg version 7.1 Copyright (c) 2000-2024\nbuilt with gcc\n")}
		case slices.Contains(args, "-encoders"):
			return engine.Result{Stdout: []byte(encoders)}
		}
		return engine.Result{ExitCode: 1}
	})
}

func TestRun(t *testing.T) {
	var buf bytes.Buffer
	rep, err := Run(context.Background(), scripted(encodersOutput, 0), testHandle, zerolog.New(&buf))
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Equal(t, "ffmpeg version 7.1 Copyright (c) 2000-2024", rep.Version)
	assert.Contains(t, buf.String(), "All encoders available")
}

func TestRun_MissingEncoder(t *testing.T) {
	out := strings.Replace(encodersOutput, " A....D libopus              libopus Opus (codec opus)\n", "", 1)
	var buf bytes.Buffer
	rep, err := Run(context.Background(), scripted(out, 0), testHandle, zerolog.New(&buf))
	require.ErrorIs(t, err, ErrMissingEncoders)
	assert.False(t, rep.OK())
	assert.Contains(t, buf.String(), "missing libopus (hq)")
}

func TestRun_EngineBroken(t *testing.T) {
	_, err := Run(context.Background(), scripted(encodersOutput, 1), testHandle, zerolog.Nop())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingEncoders)
	assert.Contains(t, err.Error(), "-version failed")
}
