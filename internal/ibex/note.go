package ibex

import (
	"strings"
	"time"
)

// Note is one note from the notes store.
type Note struct {
	ID       int64
	Title    string
	Content  string // plain text
	Markup   string // original markup, empty when the store did not keep it
	Created  time.Time
	Modified time.Time
	Folder   string
}

// Preview returns the first 200 runes of the content, with an ellipsis when cut.
func (n *Note) Preview() string {
	p := truncateRunes(n.Content, 200)
	if p != n.Content {
		p += "..."
	}
	return p
}

// WordCount returns the number of whitespace-separated words.
func (n *Note) WordCount() int {
	return len(strings.Fields(n.Content))
}
