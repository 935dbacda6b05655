// Package logging builds the process-wide zerolog logger: a human-readable
// console writer on stderr plus an optional append-mode JSON log file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/backmassage/hz432/internal/config"
	"github.com/backmassage/hz432/internal/term"
)

// Logger wraps the configured zerolog.Logger together with the log file it
// may own. Call Close when done if LogFile was set.
type Logger struct {
	zerolog.Logger

	mu   sync.Mutex
	file *os.File
}

// New initializes colors from cfg, resolves the level and optionally opens
// cfg.LogFile for appending.
func New(cfg *config.Config) (*Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg *config.Config, console *os.File) (*Logger, error) {
	color := term.Configure(cfg.ColorMode, console)

	cw := zerolog.ConsoleWriter{
		Out:        console,
		NoColor:    !color,
		TimeFormat: "15:04:05",
	}
	writers := []io.Writer{cw}

	l := &Logger{}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
		writers = append(writers, f)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ResolveLevel(cfg)).
		With().
		Timestamp().
		Logger()
	return l, nil
}

// ResolveLevel picks the log level: --log-level wins, then --verbose, then
// the LOG_LEVEL environment variable, then info.
func ResolveLevel(cfg *config.Config) zerolog.Level {
	if cfg.LogLevel != "" {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			return lvl
		}
	}
	if cfg.Verbose {
		return zerolog.DebugLevel
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if lvl, err := zerolog.ParseLevel(env); err == nil {
			return lvl
		}
	}
	return zerolog.InfoLevel
}

// Component returns a child logger annotated with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
