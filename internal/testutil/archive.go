package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"howett.net/plist"

	"github.com/drsanjula/iOSBackupExplorer/internal/database"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// BackupDate is the "Last Backup Date" written by ArchiveBuilder.
var BackupDate = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// FileMeta describes the metadata blob of a manifest row.
type FileMeta struct {
	Size    int64
	Mode    int64
	ModTime time.Time
	Birth   time.Time
}

type manifestRow struct {
	id     string
	domain string
	path   string
	flags  int64
	blob   []byte
}

// ArchiveBuilder lays out a backup archive on disk: hash-named payloads,
// a manifest store, Info.plist and Manifest.plist.
type ArchiveBuilder struct {
	t    *testing.T
	Root string

	rows            []manifestRow
	info            map[string]any
	encrypted       bool
	noManifest      bool
	corruptManifest bool
	noInfo          bool
}

// NewArchiveBuilder creates a builder rooted in a fresh temp directory.
func NewArchiveBuilder(t *testing.T) *ArchiveBuilder {
	t.Helper()
	root := filepath.Join(t.TempDir(), "00008030-001A2B3C4D5E6F70")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("creating archive root: %v", err)
	}
	return &ArchiveBuilder{
		t:    t,
		Root: root,
		info: map[string]any{
			"Device Name":       "Test iPhone",
			"Display Name":      "Test iPhone",
			"Product Type":      "iPhone14,2",
			"Product Version":   "17.2",
			"Serial Number":     "F2LTESTSERIAL",
			"Unique Identifier": "00008030-001A2B3C4D5E6F70",
			"Last Backup Date":  BackupDate,
		},
	}
}

// WithInfo overrides Info.plist keys. A nil value removes the key.
func (b *ArchiveBuilder) WithInfo(kv map[string]any) *ArchiveBuilder {
	for k, v := range kv {
		if v == nil {
			delete(b.info, k)
			continue
		}
		b.info[k] = v
	}
	return b
}

// Encrypted flags the archive as encrypted in Manifest.plist.
func (b *ArchiveBuilder) Encrypted() *ArchiveBuilder {
	b.encrypted = true
	return b
}

// WithoutManifest skips writing Manifest.db.
func (b *ArchiveBuilder) WithoutManifest() *ArchiveBuilder {
	b.noManifest = true
	return b
}

// WithCorruptManifest writes bytes that are not a database as Manifest.db.
func (b *ArchiveBuilder) WithCorruptManifest() *ArchiveBuilder {
	b.corruptManifest = true
	return b
}

// WithoutInfo skips writing Info.plist.
func (b *ArchiveBuilder) WithoutInfo() *ArchiveBuilder {
	b.noInfo = true
	return b
}

// AddFile stores content as the payload of domain/relPath and records it in
// the manifest. It returns the content identifier.
func (b *ArchiveBuilder) AddFile(domain, relPath string, content []byte, meta FileMeta) string {
	b.t.Helper()
	id := ibex.FileID(domain, relPath)
	path := b.payloadPath(id)
	if err := os.WriteFile(path, content, 0644); err != nil {
		b.t.Fatalf("writing payload %s: %v", id, err)
	}
	if meta.Size == 0 {
		meta.Size = int64(len(content))
	}
	b.AddRow(id, domain, relPath, 1, MetadataBlob(b.t, meta))
	return id
}

// AddManifestEntry records domain/relPath without writing a payload, as a
// selective backup does for excluded files.
func (b *ArchiveBuilder) AddManifestEntry(domain, relPath string, meta FileMeta) string {
	b.t.Helper()
	id := ibex.FileID(domain, relPath)
	b.AddRow(id, domain, relPath, 1, MetadataBlob(b.t, meta))
	return id
}

// AddDirectory records a directory placeholder (flags 2).
func (b *ArchiveBuilder) AddDirectory(domain, relPath string) string {
	b.t.Helper()
	id := ibex.FileID(domain, relPath)
	b.AddRow(id, domain, relPath, ibex.FlagDirectory, MetadataBlob(b.t, FileMeta{Mode: 0o40755}))
	return id
}

// AddRow records a raw manifest row.
func (b *ArchiveBuilder) AddRow(id, domain, relPath string, flags int64, blob []byte) {
	b.rows = append(b.rows, manifestRow{id: id, domain: domain, path: relPath, flags: flags, blob: blob})
}

// AddDatabase creates a SQLite payload for domain/relPath, applies schema and
// hands the open connection to fill. It returns the content identifier.
func (b *ArchiveBuilder) AddDatabase(domain, relPath, schema string, fill func(db *sql.DB)) string {
	b.t.Helper()
	id := ibex.FileID(domain, relPath)
	path := b.payloadPath(id)

	db, err := database.OpenConnection(path)
	if err != nil {
		b.t.Fatalf("creating fixture database %s: %v", relPath, err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		b.t.Fatalf("applying schema to %s: %v", relPath, err)
	}
	if fill != nil {
		fill(db)
	}

	info, err := os.Stat(path)
	if err != nil {
		b.t.Fatalf("stat fixture database: %v", err)
	}
	b.AddRow(id, domain, relPath, 1, MetadataBlob(b.t, FileMeta{Size: info.Size(), Mode: 0o100644}))
	return id
}

func (b *ArchiveBuilder) payloadPath(id string) string {
	b.t.Helper()
	dir := filepath.Join(b.Root, id[:2])
	if err := os.MkdirAll(dir, 0755); err != nil {
		b.t.Fatalf("creating payload dir: %v", err)
	}
	return filepath.Join(dir, id)
}

// Build writes the manifest store and property lists and returns the root.
func (b *ArchiveBuilder) Build() string {
	b.t.Helper()

	if !b.noInfo {
		writePlist(b.t, filepath.Join(b.Root, "Info.plist"), b.info, plist.XMLFormat)
	}
	writePlist(b.t, filepath.Join(b.Root, "Manifest.plist"), map[string]any{
		"IsEncrypted": b.encrypted,
		"Version":     "10.0",
	}, plist.BinaryFormat)

	switch {
	case b.noManifest:
	case b.corruptManifest:
		garbage := []byte("this manifest store is encrypted and unreadable without the key..")
		if err := os.WriteFile(filepath.Join(b.Root, "Manifest.db"), garbage, 0644); err != nil {
			b.t.Fatalf("writing corrupt manifest: %v", err)
		}
	default:
		b.writeManifest()
	}
	return b.Root
}

func (b *ArchiveBuilder) writeManifest() {
	b.t.Helper()
	db, err := database.OpenConnection(filepath.Join(b.Root, "Manifest.db"))
	if err != nil {
		b.t.Fatalf("creating manifest: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(ManifestSchema); err != nil {
		b.t.Fatalf("applying manifest schema: %v", err)
	}
	for _, r := range b.rows {
		MustExec(b.t, db, `INSERT INTO Files (fileID, domain, relativePath, flags, file) VALUES (?, ?, ?, ?, ?)`,
			r.id, r.domain, r.path, r.flags, r.blob)
	}
}

// MetadataBlob encodes meta as an archived object graph, the shape modern
// manifests use. Zero fields are omitted.
func MetadataBlob(t *testing.T, meta FileMeta) []byte {
	t.Helper()
	file := map[string]any{
		"$class":          plist.UID(2),
		"UserID":          int64(501),
		"GroupID":         int64(501),
		"Flags":           int64(0),
		"ProtectionClass": int64(3),
	}
	if meta.Size != 0 {
		file["Size"] = meta.Size
	}
	if meta.Mode != 0 {
		file["Mode"] = meta.Mode
	}
	if !meta.ModTime.IsZero() {
		file["LastModified"] = meta.ModTime.Unix()
		file["LastStatusChange"] = meta.ModTime.Unix()
	}
	if !meta.Birth.IsZero() {
		file["Birth"] = meta.Birth.Unix()
	}

	data, err := plist.Marshal(map[string]any{
		"$version":  int64(100000),
		"$archiver": "NSKeyedArchiver",
		"$top":      map[string]any{"root": plist.UID(1)},
		"$objects": []any{
			"$null",
			file,
			map[string]any{"$classname": "MBFile", "$classes": []any{"MBFile", "NSObject"}},
		},
	}, plist.BinaryFormat)
	if err != nil {
		t.Fatalf("encoding metadata blob: %v", err)
	}
	return data
}

func writePlist(t *testing.T, path string, v any, format int) {
	t.Helper()
	data, err := plist.Marshal(v, format)
	if err != nil {
		t.Fatalf("encoding %s: %v", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", filepath.Base(path), err)
	}
}

// MustExec runs a statement on a fixture database or fails the test.
func MustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
