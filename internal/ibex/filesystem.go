package ibex

import (
	"io"
	"io/fs"
)

// Filesystem provides read access to archive payloads. It abstracts file
// access so locators and media can be tested without real payloads.
type Filesystem interface {
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)

	// Open opens a regular file for reading.
	Open(path string) (io.ReadCloser, error)
}
