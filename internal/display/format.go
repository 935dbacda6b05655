// Package display formats sizes, bitrates and durations for the console and
// prints the startup banner.
package display

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB"}
	v := float64(bytes) / unit
	exp := 0
	for v >= unit && exp < len(suffixes)-1 {
		v /= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", v, suffixes[exp])
}

// FormatBitrate renders bits per second as "192 kbps" or "1.4 Mbps". Zero
// means the encode carried no bitrate.
func FormatBitrate(bps int64) string {
	switch {
	case bps <= 0:
		return "lossless"
	case bps < 1_000_000:
		return fmt.Sprintf("%d kbps", (bps+500)/1000)
	default:
		return fmt.Sprintf("%.1f Mbps", float64(bps)/1_000_000)
	}
}

// FormatDuration renders a track length as m:ss, or h:mm:ss past an hour.
// Unknown (zero) durations render as "-".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	s := int64(d.Round(time.Second) / time.Second)
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
