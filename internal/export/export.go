// Package export writes extracted entities to a sink: media payloads
// verbatim, contacts as vCard 3.0, chats and notes as plain text, and the
// call log as CSV.
//
// Every exporter fails soft per item. An empty source collection returns
// ErrNothingToExport without creating any output.
package export

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// Result counts the items written and the items that failed.
type Result struct {
	Exported int
	Failed   int
}

// Total is the number of items attempted.
func (r Result) Total() int { return r.Exported + r.Failed }

// Option configures an export.
type Option func(*options)

type options struct {
	logger ibex.Logger
	loc    *time.Location
}

// WithLogger sets the logger for per-item failures.
func WithLogger(l ibex.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLocation sets the time zone timestamps are rendered in. Defaults to local time.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: ibex.NewNopLogger(), loc: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) format(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.In(o.loc).Format(layout)
}

// writeFile creates name on s and writes everything produced by fill.
func writeFile(s ibex.Sink, name string, fill func(io.Writer) error) error {
	w, err := s.Create(name)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ibex.ErrExportIO, name, err)
	}
	if err := fill(w); err != nil {
		discard(w)
		return fmt.Errorf("%w: writing %s: %v", ibex.ErrExportIO, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ibex.ErrExportIO, name, err)
	}
	return nil
}

// discard abandons w without committing it where the sink allows that.
func discard(w io.WriteCloser) {
	if a, ok := w.(ibex.Aborter); ok {
		a.Abort()
		return
	}
	w.Close()
}

func writeString(s ibex.Sink, name, content string) error {
	return writeFile(s, name, func(w io.Writer) error {
		_, err := io.WriteString(w, content)
		return err
	})
}

// perItem writes one file per item, naming each through a collision-safe
// namer. It stops early when ctx is cancelled.
func perItem[T any](ctx context.Context, o options, s ibex.Sink, items []T, name func(T) string, render func(T) string) (Result, error) {
	if len(items) == 0 {
		return Result{}, ibex.ErrNothingToExport
	}

	var res Result
	names := newNamer()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := names.unique(name(item))
		if err := writeString(s, n, render(item)); err != nil {
			o.logger.Warn("export item failed", "name", n, "error", err)
			res.Failed++
			continue
		}
		res.Exported++
	}
	if res.Exported == 0 {
		return res, fmt.Errorf("%w: all %d items failed", ibex.ErrExportIO, res.Failed)
	}
	return res, nil
}

// namer hands out file names, suffixing repeats with _N before the extension.
type namer struct {
	taken map[string]int
}

func newNamer() *namer {
	return &namer{taken: make(map[string]int)}
}

func (n *namer) unique(name string) string {
	last, seen := n.taken[name]
	if !seen {
		n.taken[name] = 0
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := last + 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, ok := n.taken[candidate]; !ok {
			n.taken[name] = i
			n.taken[candidate] = 0
			return candidate
		}
	}
}

const fallbackName = "untitled"

// sanitize keeps letters, digits and the characters in allowed. The result
// is cut to max runes when max is positive.
func sanitize(name, allowed string, max int) string {
	var b strings.Builder
	count := 0
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune(allowed, r) {
			continue
		}
		if max > 0 && count == max {
			break
		}
		b.WriteRune(r)
		count++
	}
	out := strings.TrimSpace(b.String())
	if strings.Trim(out, ".") == "" {
		return fallbackName
	}
	return out
}

// FileName builds "<sanitized stem><ext>" using the default character set.
func FileName(stem, ext string) string {
	return sanitize(stem, " ._-", 0) + ext
}
