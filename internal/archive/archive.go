// Package archive opens a device backup archive and answers file-listing
// queries against its manifest store.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/drsanjula/iOSBackupExplorer/internal/blob"
	"github.com/drsanjula/iOSBackupExplorer/internal/database"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// Well-known files at the archive root.
const (
	ManifestDB     = "Manifest.db"
	LegacyManifest = "Manifest.mbdb"
	ManifestPlist  = "Manifest.plist"
	InfoPlist      = "Info.plist"
)

// Archive is an open, validated backup archive. It owns a read-only handle
// to the manifest store and is safe for concurrent reads.
type Archive struct {
	root   string
	device ibex.Device
	db     *sql.DB
	logger ibex.Logger

	mu    sync.Mutex
	cache map[string][]ibex.FileRecord // domain -> records
}

var _ ibex.Index = (*Archive)(nil)

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger used for soft failures.
func WithLogger(l ibex.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// Open validates the folder at path and opens its manifest store.
// It fails with ibex.ErrNotABackup when the manifest store or device info is
// missing and with ibex.ErrEncrypted when the archive is flagged encrypted.
func Open(ctx context.Context, path string, opts ...Option) (*Archive, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving archive path: %w", err)
	}

	if err := Validate(root); err != nil {
		return nil, err
	}

	a := &Archive{
		root:   root,
		logger: ibex.NewNopLogger(),
		cache:  make(map[string][]ibex.FileRecord),
	}
	for _, opt := range opts {
		opt(a)
	}

	encrypted, err := IsEncrypted(root)
	if err != nil {
		a.logger.Warn("manifest plist unreadable, assuming unencrypted", "path", root, "error", err)
	}
	if encrypted {
		return nil, fmt.Errorf("%w: %s (only unencrypted backups are supported)", ibex.ErrEncrypted, root)
	}

	device, err := ReadDevice(root)
	if err != nil {
		a.logger.Warn("device info unreadable, using defaults", "path", root, "error", err)
	}
	a.device = device

	db, err := database.OpenReadOnly(ctx, filepath.Join(root, ManifestDB))
	if err != nil {
		return nil, fmt.Errorf("opening manifest store: %w", err)
	}
	a.db = db

	a.logger.Info("archive opened", "path", root, "device", device.Name)
	return a, nil
}

// Validate checks the archive's structure without opening anything.
func Validate(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ibex.ErrNotABackup, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ibex.ErrNotABackup, root)
	}

	hasManifest := exists(filepath.Join(root, ManifestDB))
	hasInfo := exists(filepath.Join(root, InfoPlist))

	if !hasManifest && exists(filepath.Join(root, LegacyManifest)) {
		return fmt.Errorf("%w: %s uses the legacy %s format, which is not supported", ibex.ErrNotABackup, root, LegacyManifest)
	}
	if !hasManifest {
		return fmt.Errorf("%w: %s has no %s", ibex.ErrNotABackup, root, ManifestDB)
	}
	if !hasInfo {
		return fmt.Errorf("%w: %s has no %s", ibex.ErrNotABackup, root, InfoPlist)
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Close releases the manifest store handle. It is safe to call more than once.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	a.cache = make(map[string][]ibex.FileRecord)
	if err != nil {
		return fmt.Errorf("closing manifest store: %w", err)
	}
	return nil
}

// Root returns the absolute archive root.
func (a *Archive) Root() string { return a.root }

// Device returns the device metadata parsed at open time.
func (a *Archive) Device() ibex.Device { return a.device }

// StoragePath returns the on-disk location of rec's payload.
func (a *Archive) StoragePath(rec ibex.FileRecord) string {
	return rec.StoragePath(a.root)
}

func (a *Archive) handle() (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, errors.New("archive is closed")
	}
	return a.db, nil
}

const selectFiles = `SELECT fileID, domain, relativePath, flags, file FROM Files`

// FilesInDomain returns every record whose domain matches exactly. The result
// is cached for the lifetime of the archive; callers must not modify it.
func (a *Archive) FilesInDomain(ctx context.Context, domain string) ([]ibex.FileRecord, error) {
	a.mu.Lock()
	cached, ok := a.cache[domain]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	records, err := a.query(ctx, selectFiles+` WHERE domain = ?`, domain)
	if err != nil {
		return nil, fmt.Errorf("listing domain %s: %w", domain, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return records, nil
	}
	// Another reader may have filled the entry meanwhile; keep the first.
	if existing, ok := a.cache[domain]; ok {
		return existing, nil
	}
	a.cache[domain] = records
	return records, nil
}

// FilesMatching returns records in domain whose relative path matches the
// SQL LIKE pattern. Backslash escapes '%' and '_'. Results are not cached.
func (a *Archive) FilesMatching(ctx context.Context, domain, pattern string) ([]ibex.FileRecord, error) {
	records, err := a.query(ctx, selectFiles+` WHERE domain = ? AND relativePath LIKE ? ESCAPE '\'`, domain, pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %s in %s: %w", pattern, domain, err)
	}
	return records, nil
}

func (a *Archive) query(ctx context.Context, q string, args ...any) ([]ibex.FileRecord, error) {
	db, err := a.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()

	var records []ibex.FileRecord
	for rows.Next() {
		var (
			id, domain, relPath sql.NullString
			flags               sql.NullInt64
			meta                []byte
		)
		if err := rows.Scan(&id, &domain, &relPath, &flags, &meta); err != nil {
			return nil, fmt.Errorf("scanning manifest row: %w", err)
		}

		m, err := blob.DecodeStrict(meta)
		if err != nil {
			a.logger.Debug("metadata blob not decoded", "file_id", id.String, "error", err)
		}

		records = append(records, ibex.FileRecord{
			ID:           id.String,
			Domain:       domain.String,
			RelativePath: relPath.String,
			Flags:        flags.Int64,
			Metadata:     m,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err)
	}
	return records, nil
}

// TotalFileCount returns the number of manifest rows, or 0 on any store error.
func (a *Archive) TotalFileCount(ctx context.Context) int {
	db, err := a.handle()
	if err != nil {
		return 0
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Files`).Scan(&n); err != nil {
		a.logger.Warn("counting manifest rows failed", "error", err)
		return 0
	}
	return n
}

// DomainCounts returns the number of manifest rows per domain, or an empty
// map on any store error.
func (a *Archive) DomainCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int)

	db, err := a.handle()
	if err != nil {
		return counts
	}
	rows, err := db.QueryContext(ctx, `SELECT domain, COUNT(*) FROM Files GROUP BY domain`)
	if err != nil {
		a.logger.Warn("counting domains failed", "error", err)
		return counts
	}
	defer rows.Close()

	for rows.Next() {
		var (
			domain sql.NullString
			n      int
		)
		if err := rows.Scan(&domain, &n); err != nil {
			a.logger.Warn("scanning domain count failed", "error", err)
			return make(map[string]int)
		}
		counts[domain.String] = n
	}
	if err := rows.Err(); err != nil {
		a.logger.Warn("counting domains failed", "error", err)
		return make(map[string]int)
	}
	return counts
}
