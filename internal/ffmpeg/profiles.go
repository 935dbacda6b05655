package ffmpeg

import (
	"maps"
	"slices"
	"strings"
)

// Tier identifies an encode attempt.
type Tier string

const (
	TierHQ   Tier = "hq"   // Best-fidelity encoder settings.
	TierSafe Tier = "safe" // Conservative settings available in any ffmpeg build.
)

// Encoder is one tier's codec selection for a profile.
type Encoder struct {
	Name       string   // Short label used in logs and attempt records.
	Args       []string // Codec arguments placed after the filter.
	MaxBitRate int64    // Tier-specific ceiling in bps; 0 uses the profile ceiling.
	KeepCover  bool     // Copy embedded cover art (video stream) into the output.
}

// Profile describes how one source extension is re-encoded.
type Profile struct {
	Ext            string // Source extension.
	OutExt         string // Output extension (".wma" sources are written as ".mp3").
	Lossless       bool   // Bitrate is not passed to the encoder.
	DefaultBitRate int64  // Used when probing yields no bitrate.
	MinBitRate     int64
	MaxBitRate     int64
	SampleRate     int // Forced output rate (opus), 0 to follow the source.
	HQ             Encoder
	Safe           Encoder
}

const kbps = 1000

var mp3Profile = Profile{
	Ext: ".mp3", OutExt: ".mp3",
	DefaultBitRate: 320 * kbps, MinBitRate: 32 * kbps, MaxBitRate: 320 * kbps,
	HQ:   Encoder{Name: "libmp3lame-q0", Args: []string{"-c:a", "libmp3lame", "-compression_level", "0"}, KeepCover: true},
	Safe: Encoder{Name: "libmp3lame", Args: []string{"-c:a", "libmp3lame"}},
}

var profiles = map[string]Profile{
	".mp3": mp3Profile,
	".wma": withExt(mp3Profile, ".wma"),
	".m4a": {
		Ext: ".m4a", OutExt: ".m4a",
		DefaultBitRate: 320 * kbps, MinBitRate: 32 * kbps, MaxBitRate: 512 * kbps,
		HQ:   Encoder{Name: "aac-faststart", Args: []string{"-c:a", "aac", "-movflags", "+faststart"}, KeepCover: true},
		Safe: Encoder{Name: "aac", Args: []string{"-c:a", "aac", "-movflags", "+faststart"}, MaxBitRate: 256 * kbps},
	},
	".aac": {
		Ext: ".aac", OutExt: ".aac",
		DefaultBitRate: 320 * kbps, MinBitRate: 32 * kbps, MaxBitRate: 512 * kbps,
		HQ:   Encoder{Name: "aac", Args: []string{"-c:a", "aac"}},
		Safe: Encoder{Name: "aac-safe", Args: []string{"-c:a", "aac"}, MaxBitRate: 256 * kbps},
	},
	".flac": {
		Ext: ".flac", OutExt: ".flac", Lossless: true,
		HQ:   Encoder{Name: "flac-l8", Args: []string{"-c:a", "flac", "-compression_level", "8"}, KeepCover: true},
		Safe: Encoder{Name: "flac", Args: []string{"-c:a", "flac"}},
	},
	".wav": {
		Ext: ".wav", OutExt: ".wav", Lossless: true,
		HQ:   Encoder{Name: "pcm_s24le", Args: []string{"-c:a", "pcm_s24le"}},
		Safe: Encoder{Name: "pcm_s16le", Args: []string{"-c:a", "pcm_s16le"}},
	},
	".ogg": {
		Ext: ".ogg", OutExt: ".ogg",
		DefaultBitRate: 320 * kbps, MinBitRate: 45 * kbps, MaxBitRate: 500 * kbps,
		HQ:   Encoder{Name: "libvorbis", Args: []string{"-c:a", "libvorbis"}},
		Safe: Encoder{Name: "vorbis", Args: []string{"-c:a", "vorbis", "-strict", "-2"}, MaxBitRate: 320 * kbps},
	},
	".opus": {
		Ext: ".opus", OutExt: ".opus",
		DefaultBitRate: 256 * kbps, MinBitRate: 6 * kbps, MaxBitRate: 510 * kbps,
		SampleRate: 48000,
		HQ:         Encoder{Name: "libopus", Args: []string{"-c:a", "libopus"}},
		Safe:       Encoder{Name: "opus", Args: []string{"-c:a", "opus", "-strict", "-2"}, MaxBitRate: 256 * kbps},
	},
}

func withExt(p Profile, ext string) Profile {
	p.Ext = ext
	return p
}

// ProfileFor returns the profile for a source extension (any case).
func ProfileFor(ext string) (Profile, bool) {
	p, ok := profiles[strings.ToLower(ext)]
	return p, ok
}

// Extensions lists the source extensions that have a profile, sorted.
func Extensions() []string {
	return slices.Sorted(maps.Keys(profiles))
}

// OutputExt maps a source extension to the extension written.
func OutputExt(ext string) string {
	if p, ok := ProfileFor(ext); ok {
		return p.OutExt
	}
	return strings.ToLower(ext)
}

// Encoder returns the encoder for tier.
func (p Profile) Encoder(t Tier) Encoder {
	if t == TierSafe {
		return p.Safe
	}
	return p.HQ
}

// TargetBitRate picks the encode bitrate for tier: the probed bitrate when
// known, else fallback (or the profile default when fallback is 0), clamped
// to the range the tier's encoder accepts. Lossless profiles return 0.
func (p Profile) TargetBitRate(t Tier, probed int64, known bool, fallback int64) int64 {
	if p.Lossless {
		return 0
	}
	br := probed
	if !known || br <= 0 {
		br = fallback
		if br <= 0 {
			br = p.DefaultBitRate
		}
	}
	hi := p.MaxBitRate
	if enc := p.Encoder(t); enc.MaxBitRate > 0 && enc.MaxBitRate < hi {
		hi = enc.MaxBitRate
	}
	return clamp(br, p.MinBitRate, hi)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
