package extract

import (
	"context"
	"sort"

	"github.com/drsanjula/iOSBackupExplorer/internal/fs"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

var (
	mediaDomains  = []string{"CameraRollDomain", "MediaDomain"}
	mediaPrefixes = []string{"Media/DCIM", "Media/PhotoData"}
)

// CameraRoll lists photos and videos. It reads the manifest only; there is
// no backing store.
type CameraRoll struct {
	index   ibex.Index
	fs      ibex.Filesystem
	logger  ibex.Logger
	exclude *fs.IgnoreMatcher
	media   lazy[*ibex.MediaFile]
}

// NewCameraRoll returns a camera roll extractor over index.
func NewCameraRoll(index ibex.Index, opts ...Option) *CameraRoll {
	o := buildOptions(opts)
	return &CameraRoll{
		index:   index,
		fs:      o.fs,
		logger:  o.logger,
		exclude: fs.NewIgnoreMatcher(o.excludes),
	}
}

// All returns every recognised image and video, most recently modified
// first. Directory placeholders and excluded paths are never included.
func (c *CameraRoll) All(ctx context.Context) []*ibex.MediaFile {
	return c.media.get(ctx, c.list)
}

func (c *CameraRoll) list(ctx context.Context) []*ibex.MediaFile {
	var (
		media []*ibex.MediaFile
		seen  = make(map[string]bool)
	)
	for _, domain := range mediaDomains {
		for _, prefix := range mediaPrefixes {
			records, err := c.index.FilesMatching(ctx, domain, ibex.EscapeLike(prefix)+"%")
			if err != nil {
				c.logger.Warn("listing media failed", "domain", domain, "prefix", prefix, "error", err)
				continue
			}
			for _, rec := range records {
				if rec.IsDirectory() || seen[rec.ID] {
					continue
				}
				if ibex.KindOf(rec.Extension()) == ibex.MediaOther {
					continue
				}
				if c.exclude.Match(rec.RelativePath) {
					continue
				}
				seen[rec.ID] = true
				media = append(media, ibex.NewMediaFile(rec, c.index.Root(), c.fs))
			}
		}
	}

	sort.SliceStable(media, func(i, j int) bool {
		return newerFirst(media[i].ModTime(), media[j].ModTime())
	})
	c.logger.Debug("camera roll listed", "files", len(media))
	return media
}

// Photos returns the images from All.
func (c *CameraRoll) Photos(ctx context.Context) []*ibex.MediaFile {
	return c.filter(ctx, ibex.MediaImage)
}

// Videos returns the videos from All.
func (c *CameraRoll) Videos(ctx context.Context) []*ibex.MediaFile {
	return c.filter(ctx, ibex.MediaVideo)
}

func (c *CameraRoll) filter(ctx context.Context, kind ibex.MediaKind) []*ibex.MediaFile {
	var out []*ibex.MediaFile
	for _, m := range c.All(ctx) {
		if m.Kind() == kind {
			out = append(out, m)
		}
	}
	return out
}

// MediaStats summarises the camera roll.
type MediaStats struct {
	Total     int
	Photos    int
	Videos    int
	TotalSize int64
	PhotoSize int64
	VideoSize int64
}

// Stats summarises All.
func (c *CameraRoll) Stats(ctx context.Context) MediaStats {
	var s MediaStats
	for _, m := range c.All(ctx) {
		s.Total++
		s.TotalSize += m.Size()
		switch m.Kind() {
		case ibex.MediaImage:
			s.Photos++
			s.PhotoSize += m.Size()
		case ibex.MediaVideo:
			s.Videos++
			s.VideoSize += m.Size()
		}
	}
	return s
}
