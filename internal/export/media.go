package export

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// Progress is the checkpoint emitted after each media file is handled.
type Progress struct {
	Index       int // 1-based
	Total       int
	Label       string // output name
	BytesCopied int64  // cumulative
	TotalBytes  int64
	Err         error // non-nil when this file failed
}

// MediaExport copies media payloads verbatim into a sink. Filesystem
// destinations keep each payload's modification time.
type MediaExport struct {
	files  []*ibex.MediaFile
	sink   ibex.Sink
	opts   options
	totalB int64
}

// NewMediaExport prepares an export of files into s. Nothing is written
// until Steps is iterated or Run is called.
func NewMediaExport(files []*ibex.MediaFile, s ibex.Sink, opts ...Option) *MediaExport {
	var total int64
	for _, f := range files {
		total += f.Size()
	}
	return &MediaExport{files: files, sink: s, opts: buildOptions(opts), totalB: total}
}

// Total is the number of files the export will copy.
func (e *MediaExport) Total() int { return len(e.files) }

// TotalBytes is the combined recorded size of those files.
func (e *MediaExport) TotalBytes() int64 { return e.totalB }

// Steps returns the export as a lazy sequence. Each step copies one file and
// then yields its checkpoint; stopping the iteration stops the export after
// the current file. Every iteration starts over from the first file.
func (e *MediaExport) Steps() iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		names := newNamer()
		var copied int64
		for i, f := range e.files {
			name := names.unique(f.Filename())
			n, err := e.copy(f, name)
			copied += n
			p := Progress{
				Index:       i + 1,
				Total:       len(e.files),
				Label:       name,
				BytesCopied: copied,
				TotalBytes:  e.totalB,
				Err:         err,
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Run drives Steps, calling observe (which may be nil) with every
// checkpoint. A cancelled ctx stops the export between files and Run
// returns the partial result with ctx's error. Files already copied stay.
func (e *MediaExport) Run(ctx context.Context, observe func(Progress)) (Result, error) {
	if len(e.files) == 0 {
		return Result{}, ibex.ErrNothingToExport
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var res Result
	for p := range e.Steps() {
		if p.Err != nil {
			e.opts.logger.Warn("media copy failed", "name", p.Label, "error", p.Err)
			res.Failed++
		} else {
			res.Exported++
		}
		if observe != nil {
			observe(p)
		}
		if err := ctx.Err(); err != nil {
			e.opts.logger.Info("media export cancelled", "exported", res.Exported, "total", len(e.files))
			return res, err
		}
	}
	if res.Exported == 0 {
		return res, fmt.Errorf("%w: all %d files failed", ibex.ErrExportIO, res.Failed)
	}
	return res, nil
}

func (e *MediaExport) copy(f *ibex.MediaFile, name string) (int64, error) {
	src, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	var n int64
	err = writeFile(e.sink, name, func(w io.Writer) error {
		var err error
		n, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return 0, err
	}

	if setter, ok := e.sink.(ibex.ModTimeSetter); ok {
		if err := setter.SetModTime(name, f.ModTime()); err != nil {
			e.opts.logger.Debug("keeping modification time failed", "name", name, "error", err)
		}
	}
	return n, nil
}
