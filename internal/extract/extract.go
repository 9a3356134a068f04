// Package extract materialises the data categories stored in an archive:
// call history, notes, messages, contacts and the camera roll.
//
// Every extractor locates its backing store lazily, opens its own read-only
// connection, and caches the decoded collection for its lifetime. A missing
// or unreadable store yields an empty collection, never an error.
package extract

import (
	"context"
	"database/sql"
	"sync"

	"github.com/drsanjula/iOSBackupExplorer/internal/database"
	"github.com/drsanjula/iOSBackupExplorer/internal/fs"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/locate"
)

// Option configures an extractor.
type Option func(*options)

type options struct {
	fs       ibex.Filesystem
	logger   ibex.Logger
	excludes []string
}

// WithFilesystem sets how payloads are checked and read. Defaults to the OS.
func WithFilesystem(fsys ibex.Filesystem) Option {
	return func(o *options) { o.fs = fsys }
}

// WithLogger sets the logger for soft failures.
func WithLogger(l ibex.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithExclusions sets glob patterns for camera roll paths to skip, such as
// thumbnail caches. Other extractors ignore it.
func WithExclusions(patterns []string) Option {
	return func(o *options) { o.excludes = patterns }
}

func buildOptions(opts []Option) options {
	o := options{
		fs:     fs.NewOSFilesystem(),
		logger: ibex.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// lazy holds a collection that is loaded once. A load interrupted by
// context cancellation is not cached, so the next call retries.
type lazy[T any] struct {
	mu   sync.Mutex
	done bool
	val  []T
}

func (l *lazy[T]) get(ctx context.Context, load func(context.Context) []T) []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return l.val
	}
	v := load(ctx)
	if ctx.Err() != nil {
		return v
	}
	l.val = v
	l.done = true
	return v
}

// store finds and opens a category's backing database.
type store struct {
	name       string
	candidates []locate.Candidate
	locator    *locate.Locator
	logger     ibex.Logger
}

func newStore(name string, index ibex.Index, o options, candidates []locate.Candidate) store {
	return store{
		name:       name,
		candidates: candidates,
		locator:    locate.New(index, o.fs, o.logger),
		logger:     o.logger,
	}
}

// open returns a read-only handle, or false when the store is absent or
// cannot be opened.
func (s store) open(ctx context.Context) (*sql.DB, bool) {
	loc, ok := s.locator.Locate(ctx, s.candidates...)
	if !ok {
		s.logger.Info("store not present", "store", s.name)
		return nil, false
	}
	db, err := database.OpenReadOnly(ctx, loc.Path)
	if err != nil {
		s.logger.Warn("store unavailable", "store", s.name, "path", loc.Record.FullPath(), "error", err)
		return nil, false
	}
	s.logger.Debug("store opened", "store", s.name, "path", loc.Record.FullPath(), "file_id", loc.Record.ID)
	return db, true
}

// probe reads one schema variant of a store.
type probe[T any] struct {
	name string
	run  func(ctx context.Context, db *sql.DB) ([]T, error)
}

// load opens the store and runs probes in order. A schema mismatch moves on
// to the next probe; any other error, or running out of probes, yields an
// empty collection.
func load[T any](ctx context.Context, s store, probes []probe[T]) []T {
	db, ok := s.open(ctx)
	if !ok {
		return nil
	}
	defer db.Close()
	return runProbes(ctx, db, s.logger, s.name, probes)
}

func runProbes[T any](ctx context.Context, db *sql.DB, logger ibex.Logger, name string, probes []probe[T]) []T {
	for _, p := range probes {
		rows, err := p.run(ctx, db)
		if err == nil {
			logger.Debug("schema matched", "store", name, "schema", p.name, "rows", len(rows))
			return rows
		}
		if database.IsSchemaMismatch(err) {
			logger.Debug("schema mismatch, trying next", "store", name, "schema", p.name, "error", err)
			continue
		}
		logger.Warn("store query failed", "store", name, "schema", p.name, "error", err)
		return nil
	}
	logger.Warn("no known schema matched", "store", name)
	return nil
}
