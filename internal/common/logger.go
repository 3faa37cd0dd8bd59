package common

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel is the verbosity accepted in configuration.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a config string to a LogLevel. Unknown values mean info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// Log output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatColor = "color"
)

// Options configures a Logger.
type Options struct {
	Level  LogLevel
	Format string
	// Output defaults to stderr so that command output on stdout stays clean.
	Output io.Writer
	// Mask redacts credentials in attributes. Nil disables masking.
	Mask *Masker
}

// Logger wraps slog with the context helpers used across the pipeline.
type Logger struct {
	*slog.Logger
	level LogLevel
}

// New builds a logger from options.
func New(opts Options) *Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level.ToSlogLevel()}
	if opts.Mask != nil {
		hopts.ReplaceAttr = opts.Mask.ReplaceAttr
	}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		h = slog.NewJSONHandler(w, hopts)
	case FormatColor:
		ch := NewColorHandler(w, hopts)
		ch.SetMasker(opts.Mask)
		h = ch
	default:
		h = slog.NewTextHandler(w, hopts)
	}
	return &Logger{Logger: slog.New(h), level: opts.Level}
}

// NewLogger creates a masked text logger at the given level.
func NewLogger(level LogLevel) *Logger {
	return New(Options{Level: level, Format: FormatText, Mask: NewMasker()})
}

// NewJSONLogger creates a masked JSON logger at the given level.
func NewJSONLogger(level LogLevel) *Logger {
	return New(Options{Level: level, Format: FormatJSON, Mask: NewMasker()})
}

// NewColorLogger creates a masked, colorized logger at the given level.
func NewColorLogger(level LogLevel) *Logger {
	return New(Options{Level: level, Format: FormatColor, Mask: NewMasker()})
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), level: LogLevelError}
}

func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithRequest adds the outgoing method and url.
func (l *Logger) WithRequest(method, url string) *Logger {
	return l.with("method", method, "url", url)
}

// WithToken adds the cancellation token of an execution.
func (l *Logger) WithToken(token string) *Logger {
	return l.with("token_id", token)
}

// WithItem adds the collection and item identifiers of an execution.
func (l *Logger) WithItem(collectionID, itemUID string) *Logger {
	return l.with("collection", collectionID, "item", itemUID)
}

func (l *Logger) WithStore(storeType string) *Logger {
	return l.with("store", storeType)
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(LogLevelInfo))
}

// SetDefaultLogger replaces the process-wide logger. Nil is ignored.
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// GetLogger returns the process-wide logger.
func GetLogger() *Logger {
	return defaultLogger.Load()
}
