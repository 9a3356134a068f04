package extract

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/locate"
)

const (
	untitledNote  = "Untitled"
	defaultFolder = "Notes"
)

// Notes reads the notes store.
type Notes struct {
	store  store
	logger ibex.Logger
	notes  lazy[ibex.Note]
}

// NewNotes returns a notes extractor over index.
func NewNotes(index ibex.Index, opts ...Option) *Notes {
	o := buildOptions(opts)
	return &Notes{
		store:  newStore("notes", index, o, locate.Notes),
		logger: o.logger,
	}
}

// All returns every note, most recently modified first.
func (n *Notes) All(ctx context.Context) []ibex.Note {
	return n.notes.get(ctx, func(ctx context.Context) []ibex.Note {
		notes := load(ctx, n.store, []probe[ibex.Note]{
			{name: "ZICCLOUDSYNCINGOBJECT", run: n.modernNotes},
			{name: "note", run: legacyNotes},
		})
		sort.SliceStable(notes, func(i, j int) bool {
			return newerFirst(notes[i].Modified, notes[j].Modified)
		})
		return notes
	})
}

// newerFirst orders timestamps descending with missing ones last.
func newerFirst(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return !a.IsZero() && b.IsZero()
	}
	return a.After(b)
}

func (n *Notes) modernNotes(ctx context.Context, db *sql.DB) ([]ibex.Note, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.Z_PK, n.ZTITLE1, nd.ZDATA,
			CAST(n.ZCREATIONDATE1 AS REAL), CAST(n.ZMODIFICATIONDATE1 AS REAL)
		FROM ZICCLOUDSYNCINGOBJECT n
		LEFT JOIN ZICNOTEDATA nd ON n.ZNOTEDATA = nd.Z_PK
		WHERE n.ZTITLE1 IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []ibex.Note
	for rows.Next() {
		var (
			id                int64
			title             sql.NullString
			data              []byte
			created, modified sql.NullFloat64
		)
		if err := rows.Scan(&id, &title, &data, &created, &modified); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}

		var markup string
		if len(data) > 0 {
			body, err := DecompressNoteBody(data)
			if err != nil {
				n.logger.Debug("note body not compressed, using raw bytes", "note_id", id, "error", err)
				body = data
			}
			markup = strings.ToValidUTF8(string(body), "")
		}

		notes = append(notes, ibex.Note{
			ID:       id,
			Title:    titleOrUntitled(title.String),
			Content:  PlainText(markup),
			Markup:   markup,
			Created:  ibex.FromPlatformSeconds(created.Float64),
			Modified: ibex.FromPlatformSeconds(modified.Float64),
			Folder:   defaultFolder,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

// Legacy stores keep markup uncompressed and Unix timestamps.
func legacyNotes(ctx context.Context, db *sql.DB) ([]ibex.Note, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT ROWID, title, body, CAST(creation_date AS REAL), CAST(modification_date AS REAL)
		FROM note`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []ibex.Note
	for rows.Next() {
		var (
			id                int64
			title, body       sql.NullString
			created, modified sql.NullFloat64
		)
		if err := rows.Scan(&id, &title, &body, &created, &modified); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, ibex.Note{
			ID:       id,
			Title:    titleOrUntitled(title.String),
			Content:  PlainText(body.String),
			Markup:   body.String,
			Created:  ibex.FromUnixSeconds(created.Float64),
			Modified: ibex.FromUnixSeconds(modified.Float64),
			Folder:   defaultFolder,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func titleOrUntitled(s string) string {
	if s == "" {
		return untitledNote
	}
	return s
}

var gzipMagic = []byte{0x1f, 0x8b}

// DecompressNoteBody inflates a note body. Bodies are normally a raw deflate
// stream with no header; gzip-framed bodies are accepted too.
func DecompressNoteBody(data []byte) ([]byte, error) {
	var r io.ReadCloser
	if bytes.HasPrefix(data, gzipMagic) {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip header: %v", ibex.ErrDecodeFailure, err)
		}
		r = gz
	} else {
		r = flate.NewReader(bytes.NewReader(data))
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: inflating note body: %v", ibex.ErrDecodeFailure, err)
	}
	return out, nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// PlainText strips markup tags, then resolves entity escapes, then trims.
// Escaped angle brackets therefore survive as literal text.
func PlainText(markup string) string {
	if markup == "" {
		return ""
	}
	text := tagPattern.ReplaceAllString(markup, "")
	text = html.UnescapeString(text)
	return strings.TrimSpace(text)
}

// NoteStats summarises the notes store.
type NoteStats struct {
	Notes int
	Words int
}

// Stats summarises All.
func (n *Notes) Stats(ctx context.Context) NoteStats {
	var s NoteStats
	for _, note := range n.All(ctx) {
		s.Notes++
		s.Words += note.WordCount()
	}
	return s
}
