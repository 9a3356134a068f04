package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// OpenReadOnly opens an existing SQLite file for reading only and verifies
// that it is a database. Archive payloads are standalone copies without
// journal or WAL companions, so the file is opened immutable: SQLite never
// tries to create or read a -shm/-wal next to it.
func OpenReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ibex.ErrStoreUnavailable, path, err)
	}

	// sql.Open is lazy and SQLite reads the header on first use.
	var version int64
	if err := db.QueryRowContext(ctx, "PRAGMA schema_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: reading %s: %v", ibex.ErrStoreUnavailable, path, err)
	}

	return db, nil
}

func readOnlyDSN(path string) string {
	u := url.URL{Path: path}
	return "file:" + u.EscapedPath() + "?mode=ro&immutable=1&_query_only=1"
}

// OpenConnection opens (creating if needed) a writable SQLite database.
// It is used by tools and tests that build fixture stores; the extraction
// code only ever reads through OpenReadOnly.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// IsSchemaMismatch reports whether err is SQLite complaining about a missing
// table or column, the signal that a store uses a different schema version.
func IsSchemaMismatch(err error) bool {
	if errors.Is(err, ibex.ErrSchemaMismatch) {
		return true
	}
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrError {
		return false
	}
	msg := se.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column")
}

// Classify wraps err with ibex.ErrSchemaMismatch or ibex.ErrStoreUnavailable
// so callers can decide between trying another schema and giving up.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsSchemaMismatch(err) {
		return fmt.Errorf("%w: %v", ibex.ErrSchemaMismatch, err)
	}
	return fmt.Errorf("%w: %v", ibex.ErrStoreUnavailable, err)
}
