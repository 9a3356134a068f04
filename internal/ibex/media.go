package ibex

import (
	"fmt"
	"io"
	"time"
)

// MediaKind classifies a media file by extension.
type MediaKind int

const (
	MediaOther MediaKind = iota
	MediaImage
	MediaVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	default:
		return "other"
	}
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".heif": true,
	".gif": true, ".bmp": true, ".tiff": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mov": true, ".mp4": true, ".m4v": true, ".avi": true, ".3gp": true,
}

// KindOf classifies a lowercase extension (with the dot).
func KindOf(ext string) MediaKind {
	switch {
	case imageExtensions[ext]:
		return MediaImage
	case videoExtensions[ext]:
		return MediaVideo
	default:
		return MediaOther
	}
}

// MediaFile is a Camera Roll photo or video backed by an archive payload.
type MediaFile struct {
	Record     FileRecord
	SourcePath string
	fs         Filesystem
}

// NewMediaFile wraps rec; the payload is read through fsys.
func NewMediaFile(rec FileRecord, root string, fsys Filesystem) *MediaFile {
	return &MediaFile{
		Record:     rec,
		SourcePath: rec.StoragePath(root),
		fs:         fsys,
	}
}

func (m *MediaFile) Filename() string     { return m.Record.Filename() }
func (m *MediaFile) Kind() MediaKind      { return KindOf(m.Record.Extension()) }
func (m *MediaFile) IsImage() bool        { return m.Kind() == MediaImage }
func (m *MediaFile) IsVideo() bool        { return m.Kind() == MediaVideo }
func (m *MediaFile) Size() int64          { return m.Record.Size() }
func (m *MediaFile) ModTime() time.Time   { return m.Record.ModTime() }
func (m *MediaFile) OriginalPath() string { return m.Record.RelativePath }

// Exists reports whether the payload is present in the archive.
func (m *MediaFile) Exists() bool {
	info, err := m.fs.Stat(m.SourcePath)
	return err == nil && !info.IsDir()
}

// Open opens the payload bytes.
func (m *MediaFile) Open() (io.ReadCloser, error) {
	rc, err := m.fs.Open(m.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", m.Record.FullPath(), err)
	}
	return rc, nil
}

// Preview reads at most max bytes of the payload.
func (m *MediaFile) Preview(max int64) ([]byte, error) {
	rc, err := m.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, max))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.Record.FullPath(), err)
	}
	return data, nil
}
