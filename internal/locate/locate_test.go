package locate_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/drsanjula/iOSBackupExplorer/internal/archive"
	"github.com/drsanjula/iOSBackupExplorer/internal/fs"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/locate"
	"github.com/drsanjula/iOSBackupExplorer/internal/testutil"
)

func open(t *testing.T, b *testutil.ArchiveBuilder) *archive.Archive {
	t.Helper()
	a, err := archive.Open(context.Background(), b.Build())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestLocatePriority(t *testing.T) {
	b := testutil.NewArchiveBuilder(t)
	legacy := b.AddFile("WirelessDomain", "Library/CallHistory/call_history.db", []byte("legacy"), testutil.FileMeta{})
	modern := b.AddFile("HomeDomain", "Library/CallHistoryDB/CallHistory.storedata", []byte("modern"), testutil.FileMeta{})
	a := open(t, b)

	l := locate.New(a, fs.NewOSFilesystem(), nil)

	loc, ok := l.Locate(context.Background(), locate.CallHistory...)
	if !ok {
		t.Fatal("Locate() found nothing")
	}
	if loc.Record.ID != modern {
		t.Errorf("Locate() = %s, want modern store %s", loc.Record.ID, modern)
	}
	if loc.Path != a.StoragePath(loc.Record) {
		t.Errorf("Path = %q, want %q", loc.Path, a.StoragePath(loc.Record))
	}

	loc, ok = l.Locate(context.Background(), locate.CallHistory[1:]...)
	if !ok || loc.Record.ID != legacy {
		t.Errorf("Locate(legacy only) = %v, %v; want %s", loc.Record.ID, ok, legacy)
	}
}

func TestLocateSkipsMissingPayload(t *testing.T) {
	b := testutil.NewArchiveBuilder(t)
	// Selective backup: the modern store is listed but its payload was excluded.
	b.AddManifestEntry("AppDomainGroup-group.com.apple.notes", "NoteStore.sqlite", testutil.FileMeta{})
	legacy := b.AddFile("HomeDomain", "Library/Notes/notes.sqlite", []byte("notes"), testutil.FileMeta{})
	a := open(t, b)

	loc, ok := locate.New(a, fs.NewOSFilesystem(), nil).Locate(context.Background(), locate.Notes...)
	if !ok {
		t.Fatal("Locate() found nothing")
	}
	if loc.Record.ID != legacy {
		t.Errorf("Locate() = %s, want %s", loc.Record.ID, legacy)
	}
}

func TestLocateSkipsDirectories(t *testing.T) {
	b := testutil.NewArchiveBuilder(t)
	id := b.AddDirectory("HomeDomain", "Library/SMS/sms.db")
	a := open(t, b)

	// Even with something on disk at the payload slot, a directory entry never resolves.
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile(a.StoragePath(ibex.FileRecord{ID: id}), []byte("x"))

	if _, ok := locate.New(a, fsys, nil).Locate(context.Background(), locate.Messages...); ok {
		t.Error("Locate() resolved a directory placeholder")
	}
}

func TestLocateSuffixIsLiteral(t *testing.T) {
	b := testutil.NewArchiveBuilder(t)
	b.AddFile("HomeDomain", "Library/CallHistory/callXhistory.db", []byte("x"), testutil.FileMeta{})
	a := open(t, b)

	_, ok := locate.New(a, fs.NewOSFilesystem(), nil).Locate(context.Background(),
		locate.Candidate{Domain: "HomeDomain", PathSuffix: "call_history.db"})
	if ok {
		t.Error("underscore in suffix matched as a wildcard")
	}
}

func TestLocateAbsent(t *testing.T) {
	a := open(t, testutil.NewArchiveBuilder(t))
	l := locate.New(a, fs.NewOSFilesystem(), nil)

	for name, candidates := range map[string][]locate.Candidate{
		"calls":    locate.CallHistory,
		"notes":    locate.Notes,
		"messages": locate.Messages,
		"contacts": locate.Contacts,
		"none":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			if loc, ok := l.Locate(context.Background(), candidates...); ok {
				t.Errorf("Locate() = %+v, want absent", loc)
			}
		})
	}
}

type failingIndex struct{ root string }

func (f failingIndex) Root() string { return f.root }

func (failingIndex) FilesInDomain(context.Context, string) ([]ibex.FileRecord, error) {
	return nil, errors.New("store gone")
}

func (failingIndex) FilesMatching(context.Context, string, string) ([]ibex.FileRecord, error) {
	return nil, errors.New("store gone")
}

func TestLocateQueryErrorIsAbsence(t *testing.T) {
	l := locate.New(failingIndex{root: os.TempDir()}, testutil.NewMockFilesystem(), nil)
	if _, ok := l.Locate(context.Background(), locate.Contacts...); ok {
		t.Error("Locate() succeeded against a failing index")
	}
}
