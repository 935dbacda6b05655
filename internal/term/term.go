// Package term decides whether ANSI colors are used and holds the escape
// sequences for the few places that color their own output (the banner and
// the analyze table). Log line colors are left to zerolog's ConsoleWriter.
package term

import (
	"os"
	"strings"

	"github.com/backmassage/hz432/internal/config"
)

// Palette is a set of escape sequences. The zero value is colorless.
type Palette struct {
	Red     string
	Orange  string
	Magenta string
	Reset   string
}

var ansi = Palette{
	Red:     "\033[1;91m",
	Orange:  "\033[1;38;5;208m",
	Magenta: "\033[1;95m",
	Reset:   "\033[0m",
}

// Active sequences; empty strings while colors are off, so concatenating
// them is always safe.
var (
	Red     string
	Orange  string
	Magenta string
	NC      string
)

func use(p Palette) {
	Red, Orange, Magenta, NC = p.Red, p.Orange, p.Magenta, p.Reset
}

// Configure resolves mode against f and the environment and installs the
// matching palette. It reports whether colors are on.
func Configure(mode config.ColorMode, f *os.File) bool {
	on := Resolve(mode, IsTerminal(f), os.Getenv)
	if on {
		use(ansi)
	} else {
		use(Palette{})
	}
	return on
}

// Enabled reports whether ANSI colors are currently active.
func Enabled() bool { return NC != "" }

// Resolve applies the color mode. In auto mode colors need a TTY and are
// vetoed by NO_COLOR (https://no-color.org) or TERM=dumb; CLICOLOR_FORCE
// turns them on even without a TTY.
func Resolve(mode config.ColorMode, tty bool, getenv func(string) string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if getenv("NO_COLOR") != "" || strings.EqualFold(getenv("TERM"), "dumb") {
		return false
	}
	if v := getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return tty
}

// Paint wraps s in color and a reset. With colors off it returns s as is.
func Paint(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + NC
}

// IsTerminal reports whether f is a character device.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
