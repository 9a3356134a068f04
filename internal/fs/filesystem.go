package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
)

// OSFilesystem reads archive payloads from the real filesystem.
type OSFilesystem struct{}

// NewOSFilesystem returns a Filesystem backed by the os package.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

// Stat returns file info for path.
func (*OSFilesystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Open opens a regular file for reading. Payloads are plain files; anything
// else in a payload slot means the archive is damaged.
func (*OSFilesystem) Open(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat payload: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("payload is not a regular file: %s", path)
	}
	return os.Open(path)
}
