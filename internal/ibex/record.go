package ibex

import (
	"crypto/sha1"
	"encoding/hex"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// FlagDirectory marks a manifest row that is a directory placeholder rather
// than a payload.
const FlagDirectory = 2

// Metadata is the decoded content of a manifest row's metadata blob.
// Every field is nil when the blob did not carry it or could not be decoded.
type Metadata struct {
	Size         *int64
	Mode         *int64
	LastModified *time.Time
	Birth        *time.Time
}

// IsEmpty reports whether no field was decoded.
func (m Metadata) IsEmpty() bool {
	return m.Size == nil && m.Mode == nil && m.LastModified == nil && m.Birth == nil
}

// FileRecord identifies one payload within an archive.
type FileRecord struct {
	ID           string // manifest-stored content identifier (40 lowercase hex chars)
	Domain       string
	RelativePath string
	Flags        int64
	Metadata     Metadata
}

// IsDirectory reports whether the record is a directory placeholder.
func (r FileRecord) IsDirectory() bool {
	return r.Flags == FlagDirectory
}

// FullPath returns "domain:relative/path".
func (r FileRecord) FullPath() string {
	return r.Domain + ":" + r.RelativePath
}

// Filename returns the last element of the relative path.
func (r FileRecord) Filename() string {
	return path.Base(r.RelativePath)
}

// Extension returns the lowercase extension of the relative path, including the dot.
func (r FileRecord) Extension() string {
	return strings.ToLower(path.Ext(r.RelativePath))
}

// Size returns the decoded size or 0.
func (r FileRecord) Size() int64 {
	if r.Metadata.Size == nil {
		return 0
	}
	return *r.Metadata.Size
}

// ModTime returns the decoded modification time or the zero time.
func (r FileRecord) ModTime() time.Time {
	if r.Metadata.LastModified == nil {
		return time.Time{}
	}
	return *r.Metadata.LastModified
}

// StoragePath returns where the payload lives below root. The path is derived
// from the manifest-stored identifier, never recomputed.
func (r FileRecord) StoragePath(root string) string {
	return StoragePath(root, r.ID)
}

// FileID computes the content identifier a device assigns to a file:
// lowercase hex SHA-1 of "domain-relativePath".
func FileID(domain, relativePath string) string {
	sum := sha1.Sum([]byte(domain + "-" + relativePath))
	return hex.EncodeToString(sum[:])
}

// StoragePath returns root/<first two hex chars of id>/<id>.
func StoragePath(root, id string) string {
	if len(id) < 2 {
		return filepath.Join(root, id)
	}
	return filepath.Join(root, id[:2], id)
}
