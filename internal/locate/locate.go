// Package locate finds the payload backing a data category inside an
// archive, trying known (domain, path) candidates in priority order.
package locate

import (
	"context"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// Candidate names a file by its domain and the tail of its relative path.
type Candidate struct {
	Domain     string
	PathSuffix string
}

// Location is a candidate resolved to a payload present on disk.
type Location struct {
	Record ibex.FileRecord
	Path   string
}

// Known stores, newest layout first.
var (
	CallHistory = []Candidate{
		{Domain: "HomeDomain", PathSuffix: "Library/CallHistoryDB/CallHistory.storedata"},
		{Domain: "WirelessDomain", PathSuffix: "Library/CallHistory/call_history.db"},
		{Domain: "HomeDomain", PathSuffix: "Library/CallHistory/call_history.db"},
	}
	Notes = []Candidate{
		{Domain: "AppDomainGroup-group.com.apple.notes", PathSuffix: "NoteStore.sqlite"},
		{Domain: "HomeDomain", PathSuffix: "Library/Notes/notes.sqlite"},
	}
	Messages = []Candidate{
		{Domain: "HomeDomain", PathSuffix: "Library/SMS/sms.db"},
	}
	Contacts = []Candidate{
		{Domain: "HomeDomain", PathSuffix: "Library/AddressBook/AddressBook.sqlitedb"},
	}
)

// Locator resolves candidates against an archive index.
type Locator struct {
	index  ibex.Index
	fs     ibex.Filesystem
	logger ibex.Logger
}

// New returns a Locator over index. Payload existence is checked through fsys.
func New(index ibex.Index, fsys ibex.Filesystem, logger ibex.Logger) *Locator {
	if logger == nil {
		logger = ibex.NewNopLogger()
	}
	return &Locator{index: index, fs: fsys, logger: logger}
}

// Locate returns the first candidate whose manifest entry exists and whose
// payload is present on disk. Manifest entries without a payload (selective
// backups) are skipped. Absence is reported as false, never as an error.
func (l *Locator) Locate(ctx context.Context, candidates ...Candidate) (Location, bool) {
	for _, c := range candidates {
		records, err := l.index.FilesMatching(ctx, c.Domain, "%"+ibex.EscapeLike(c.PathSuffix))
		if err != nil {
			l.logger.Warn("manifest lookup failed", "domain", c.Domain, "suffix", c.PathSuffix, "error", err)
			continue
		}
		for _, rec := range records {
			if rec.IsDirectory() {
				continue
			}
			p := rec.StoragePath(l.index.Root())
			info, err := l.fs.Stat(p)
			if err != nil || info.IsDir() {
				l.logger.Debug("payload missing", "domain", rec.Domain, "path", rec.RelativePath, "file_id", rec.ID)
				continue
			}
			return Location{Record: rec, Path: p}, true
		}
	}
	return Location{}, false
}
