package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// newFixtureDB creates a database file with a single table and returns its path.
func newFixtureDB(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "fixture with space.db")
	db, err := OpenConnection(path)
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE call (ROWID INTEGER PRIMARY KEY, address TEXT)`); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO call (address) VALUES ('+15550001111')`); err != nil {
		t.Fatalf("inserting row: %v", err)
	}
	return path
}

func TestOpenReadOnly(t *testing.T) {
	ctx := context.Background()

	t.Run("reads existing database", func(t *testing.T) {
		path := newFixtureDB(t, t.TempDir())

		db, err := OpenReadOnly(ctx, path)
		if err != nil {
			t.Fatalf("OpenReadOnly() error = %v", err)
		}
		defer db.Close()

		var address string
		if err := db.QueryRow(`SELECT address FROM call`).Scan(&address); err != nil {
			t.Fatalf("query error = %v", err)
		}
		if address != "+15550001111" {
			t.Errorf("address = %q, want +15550001111", address)
		}
	})

	t.Run("rejects writes", func(t *testing.T) {
		path := newFixtureDB(t, t.TempDir())

		db, err := OpenReadOnly(ctx, path)
		if err != nil {
			t.Fatalf("OpenReadOnly() error = %v", err)
		}
		defer db.Close()

		if _, err := db.Exec(`INSERT INTO call (address) VALUES ('x')`); err == nil {
			t.Error("INSERT succeeded on a read-only connection")
		}
	})

	t.Run("missing file is unavailable", func(t *testing.T) {
		_, err := OpenReadOnly(ctx, filepath.Join(t.TempDir(), "nope.db"))
		if !errors.Is(err, ibex.ErrStoreUnavailable) {
			t.Errorf("OpenReadOnly() error = %v, want ErrStoreUnavailable", err)
		}
	})

	t.Run("non-database file is unavailable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage")
		if err := os.WriteFile(path, []byte("definitely not a sqlite database, just some text padding it out"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := OpenReadOnly(ctx, path)
		if !errors.Is(err, ibex.ErrStoreUnavailable) {
			t.Errorf("OpenReadOnly() error = %v, want ErrStoreUnavailable", err)
		}
	})
}

func TestIsSchemaMismatch(t *testing.T) {
	path := newFixtureDB(t, t.TempDir())
	db, err := OpenReadOnly(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenReadOnly() error = %v", err)
	}
	defer db.Close()

	_, missingTable := db.Query(`SELECT Z_PK FROM ZCALLRECORD`)
	_, missingColumn := db.Query(`SELECT ZADDRESS FROM call`)
	_, syntax := db.Query(`SELEC nonsense`)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing table", missingTable, true},
		{"missing column", missingColumn, true},
		{"syntax error", syntax, false},
		{"plain error", errors.New("no such table: but not from sqlite"), false},
		{"wrapped sentinel", fmt.Errorf("probe: %w", ibex.ErrSchemaMismatch), true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSchemaMismatch(tt.err); got != tt.want {
				t.Errorf("IsSchemaMismatch(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	if err := Classify(missingTable); !errors.Is(err, ibex.ErrSchemaMismatch) {
		t.Errorf("Classify(missing table) = %v, want ErrSchemaMismatch", err)
	}
	if err := Classify(syntax); !errors.Is(err, ibex.ErrStoreUnavailable) {
		t.Errorf("Classify(syntax) = %v, want ErrStoreUnavailable", err)
	}
	if err := Classify(nil); err != nil {
		t.Errorf("Classify(nil) = %v, want nil", err)
	}
}
