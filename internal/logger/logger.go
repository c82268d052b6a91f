// Package logger provides a simple leveled logger for the application.
// It supports three levels: off (no output), normal (info/warn/error),
// and verbose (includes debug). Output goes through zerolog, either as
// human-readable console lines or as JSON. The logger is safe for
// concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level controls the verbosity of the logger.
type Level int

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// Format selects how log lines are rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Option configures a Logger.
type Option func(*options)

type options struct {
	format Format
}

// WithFormat selects console (default) or JSON output.
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// Logger is a leveled logger. All methods are safe for concurrent use.
type Logger struct {
	mu    *sync.RWMutex
	level *Level
	zl    zerolog.Logger
}

// New creates a logger with the given level, writing to the given output.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer, opts ...Option) *Logger {
	if out == nil {
		out = os.Stderr
	}
	o := options{format: FormatConsole}
	for _, opt := range opts {
		opt(&o)
	}

	w := out
	if o.format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.TimeOnly,
			NoColor:    out != os.Stderr && out != os.Stdout,
		}
	}

	lvl := level
	return &Logger{
		mu:    &sync.RWMutex{},
		level: &lvl,
		zl:    zerolog.New(w).With().Timestamp().Logger(),
	}
}

// With returns a child logger that adds key=value to every line. The child
// shares its level with the parent.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		mu:    l.mu,
		level: l.level,
		zl:    l.zl.With().Interface(key, value).Logger(),
	}
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.level = level
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.level
}

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	if l.GetLevel() >= LevelVerbose {
		l.zl.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.zl.Info().Msg(fmt.Sprintf(format, args...))
	}
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.zl.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.zl.Error().Msg(fmt.Sprintf(format, args...))
	}
}

// ParseLevel maps a config string to a Level. Unknown strings map to
// LevelNormal.
func ParseLevel(s string) Level {
	switch s {
	case "off", "quiet", "none":
		return LevelOff
	case "debug", "verbose":
		return LevelVerbose
	default:
		return LevelNormal
	}
}
