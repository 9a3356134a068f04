package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// logOutput is one destination of the handler with its own minimum level.
type logOutput struct {
	w     io.Writer
	level slog.Level
}

// ibexHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
type ibexHandler struct {
	outputs []logOutput
	opID    string
	attrs   []slog.Attr
}

func (h *ibexHandler) Enabled(_ context.Context, level slog.Level) bool {
	for _, o := range h.outputs {
		if level >= o.level {
			return true
		}
	}
	return false
}

func (h *ibexHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.opID, r.Message)

	// Write pre-set attrs.
	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}

	// Write per-record attrs.
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	line := b.String()
	for _, o := range h.outputs {
		if r.Level < o.level {
			continue
		}
		if _, err := io.WriteString(o.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (h *ibexHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ibexHandler{
		outputs: h.outputs,
		opID:    h.opID,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *ibexHandler) WithGroup(string) slog.Handler { return h }

// parseLevel reads a config log level. Empty means info.
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// newLogger creates a structured logger that writes to logDir/ibex.log at
// level and to console at warning level or above. It returns the
// slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir, opID string, level slog.Level, console io.Writer) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "ibex.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &ibexHandler{
		outputs: []logOutput{
			{w: f, level: level},
			{w: console, level: max(level, slog.LevelWarn)},
		},
		opID: opID,
	}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the ibex.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
