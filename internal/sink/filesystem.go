// Package sink provides export destinations: a local directory, memory,
// an S3 bucket, and an age-encrypting wrapper around any of them.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// FileSystemSink writes exports into a directory. The directory is created
// on the first write, so an export that writes nothing leaves no trace.
// Each file is written to a temp file and renamed into place on Close.
type FileSystemSink struct {
	dir  string
	once sync.Once
	err  error
}

var (
	_ ibex.Sink          = (*FileSystemSink)(nil)
	_ ibex.ModTimeSetter = (*FileSystemSink)(nil)
)

// NewFileSystemSink creates a sink rooted at dir.
func NewFileSystemSink(dir string) *FileSystemSink {
	return &FileSystemSink{dir: dir}
}

// Location returns the destination directory.
func (s *FileSystemSink) Location() string { return s.dir }

func (s *FileSystemSink) ensureDir() error {
	s.once.Do(func() {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			s.err = fmt.Errorf("creating destination directory: %w", err)
		}
	})
	return s.err
}

// Create opens name for writing. An existing file of that name is replaced
// only when Close succeeds.
func (s *FileSystemSink) Create(name string) (io.WriteCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &atomicFile{f: tmp, dest: filepath.Join(s.dir, name)}, nil
}

// SetModTime stamps an exported file with t.
func (s *FileSystemSink) SetModTime(name string, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	if err := os.Chtimes(filepath.Join(s.dir, name), t, t); err != nil {
		return fmt.Errorf("setting modification time: %w", err)
	}
	return nil
}

type atomicFile struct {
	f      *os.File
	dest   string
	failed bool
}

func (a *atomicFile) Write(p []byte) (int, error) {
	n, err := a.f.Write(p)
	if err != nil {
		a.failed = true
	}
	return n, err
}

var _ ibex.Aborter = (*atomicFile)(nil)

// Abort drops the temp file; dest is left untouched.
func (a *atomicFile) Abort() error {
	a.f.Close()
	if err := os.Remove(a.f.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing temp file: %w", err)
	}
	return nil
}

func (a *atomicFile) Close() error {
	tmpPath := a.f.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := a.f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if a.failed {
		return fmt.Errorf("write to %s failed", filepath.Base(a.dest))
	}
	if err := os.Rename(tmpPath, a.dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

// validName rejects names that would escape the sink.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid export name %q", name)
	}
	return nil
}
