package export

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

const (
	noteTime        = "2006-01-02 15:04"
	maxNoteNameRune = 100
)

// NoteText renders a note: title, underline, created and modified times,
// a rule, then the body.
func NoteText(n ibex.Note, opts ...Option) string {
	return buildOptions(opts).noteText(n)
}

func (o options) noteText(n ibex.Note) string {
	lines := []string{
		n.Title,
		strings.Repeat("=", utf8.RuneCountInString(n.Title)),
		"",
		"Created: " + o.format(n.Created, noteTime),
		"Modified: " + o.format(n.Modified, noteTime),
		"",
		strings.Repeat("-", 50),
		"",
		n.Content,
	}
	return strings.Join(lines, "\n") + "\n"
}

// Notes writes one text file per note, named after its title.
func Notes(ctx context.Context, notes []ibex.Note, s ibex.Sink, opts ...Option) (Result, error) {
	o := buildOptions(opts)
	return perItem(ctx, o, s, notes,
		func(n ibex.Note) string { return sanitize(n.Title, " ._-", maxNoteNameRune) + ".txt" },
		o.noteText)
}
