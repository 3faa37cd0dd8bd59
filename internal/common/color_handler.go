package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

// ColorHandler is a terminal friendly slog handler. HTTP status attributes are
// colored by class and attributes are masked when a Masker is set.
type ColorHandler struct {
	opts     *slog.HandlerOptions
	mu       *sync.Mutex
	writer   io.Writer
	attrs    []slog.Attr
	groups   []string
	masker   *Masker
	useColor bool
}

func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{opts: opts, mu: &sync.Mutex{}, writer: w, useColor: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	if runtime.GOOS == "windows" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(h.colorize(Gray, r.Time.Format(time.RFC3339)))
		b.WriteByte(' ')
	}
	b.WriteString(h.level(r.Level))
	b.WriteByte(' ')
	if len(h.groups) > 0 {
		b.WriteString(h.colorize(Cyan, "["+strings.Join(h.groups, ".")+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)

	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		if h.masker != nil {
			a = h.masker.ReplaceAttr(h.groups, a)
		}
		b.WriteByte(' ')
		b.WriteString(h.colorize(Cyan, a.Key))
		b.WriteByte('=')
		b.WriteString(h.value(a))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *ColorHandler) level(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return h.colorize(Red, "[ERROR]")
	case l >= slog.LevelWarn:
		return h.colorize(Yellow, "[WARN ]")
	case l >= slog.LevelInfo:
		return h.colorize(Green, "[INFO ]")
	default:
		return h.colorize(Gray, "[DEBUG]")
	}
}

func (h *ColorHandler) value(a slog.Attr) string {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		if a.Key == "status" {
			return h.colorize(statusColor(v.Int64()), fmt.Sprintf("%d", v.Int64()))
		}
		return h.colorize(Magenta, fmt.Sprintf("%d", v.Int64()))
	case slog.KindFloat64:
		return h.colorize(Magenta, fmt.Sprintf("%g", v.Float64()))
	case slog.KindBool:
		return h.colorize(Magenta, fmt.Sprintf("%t", v.Bool()))
	case slog.KindDuration:
		return h.colorize(Yellow, v.Duration().String())
	case slog.KindTime:
		return h.colorize(Gray, v.Time().Format(time.RFC3339))
	case slog.KindString:
		if a.Key == "error" {
			return h.colorize(Red, fmt.Sprintf("%q", v.String()))
		}
		return fmt.Sprintf("%q", v.String())
	default:
		if err, ok := v.Any().(error); ok {
			return h.colorize(Red, fmt.Sprintf("%q", err.Error()))
		}
		return fmt.Sprintf("%v", v.Any())
	}
}

func statusColor(code int64) string {
	switch {
	case code >= 500:
		return Red
	case code >= 400:
		return Yellow
	case code >= 300:
		return Cyan
	default:
		return Green
	}
}

func (h *ColorHandler) colorize(color, text string) string {
	if !h.useColor {
		return text
	}
	return color + text + Reset
}

func (h *ColorHandler) clone() *ColorHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)
	return c
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

// SetMasker sets the masker applied to attributes. Nil disables masking.
func (h *ColorHandler) SetMasker(m *Masker) {
	h.masker = m
}

// SetColorEnabled overrides terminal detection.
func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.useColor = enabled
}
