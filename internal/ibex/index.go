package ibex

import (
	"context"
	"strings"
)

// Index answers file-listing queries against an archive's manifest store.
type Index interface {
	// Root returns the archive root directory.
	Root() string

	// FilesInDomain returns every record whose domain matches exactly.
	FilesInDomain(ctx context.Context, domain string) ([]FileRecord, error)

	// FilesMatching returns records in domain whose relative path matches the
	// SQL LIKE pattern (backslash escapes wildcards).
	FilesMatching(ctx context.Context, domain, pattern string) ([]FileRecord, error)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards in s so it matches literally in a
// FilesMatching pattern.
func EscapeLike(s string) string { return likeEscaper.Replace(s) }
