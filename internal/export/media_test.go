package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/sink"
	"github.com/drsanjula/iOSBackupExplorer/internal/testutil"
)

const mediaRoot = "/backup/device"

var mediaTime = time.Date(2023, 8, 20, 9, 15, 0, 0, time.UTC)

func mediaFile(fsys *testutil.MockFilesystem, rel, content string, present bool) *ibex.MediaFile {
	size := int64(len(content))
	mod := mediaTime
	rec := ibex.FileRecord{
		ID:           ibex.FileID("CameraRollDomain", rel),
		Domain:       "CameraRollDomain",
		RelativePath: rel,
		Flags:        1,
		Metadata:     ibex.Metadata{Size: &size, LastModified: &mod},
	}
	if present {
		fsys.AddFile(rec.StoragePath(mediaRoot), []byte(content))
	}
	return ibex.NewMediaFile(rec, mediaRoot, fsys)
}

func duplicateMedia(t *testing.T) []*ibex.MediaFile {
	t.Helper()
	fsys := testutil.NewMockFilesystem()
	return []*ibex.MediaFile{
		mediaFile(fsys, "Media/DCIM/100APPLE/IMG_0001.JPG", "one", true),
		mediaFile(fsys, "Media/DCIM/101APPLE/IMG_0001.JPG", "two", true),
		mediaFile(fsys, "Media/DCIM/100APPLE/IMG_0002.MOV", "movie", true),
		mediaFile(fsys, "Media/DCIM/102APPLE/IMG_0001.JPG", "three", true),
	}
}

func TestMediaExport_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	files := duplicateMedia(t)

	res, err := NewMediaExport(files, sink.NewFileSystemSink(dir)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Exported != 4 || res.Failed != 0 {
		t.Errorf("Run() = %+v, want 4 exported", res)
	}

	want := map[string]string{
		"IMG_0001.JPG":   "one",
		"IMG_0001_1.JPG": "two",
		"IMG_0002.MOV":   "movie",
		"IMG_0001_2.JPG": "three",
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(want) {
		t.Errorf("got %d files, want %d", len(entries), len(want))
	}
	for name, content := range want {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if string(data) != content {
			t.Errorf("%s = %q, want %q", name, data, content)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(mediaTime) {
			t.Errorf("%s modtime = %v, want %v", name, info.ModTime(), mediaTime)
		}
	}
}

func TestMediaExport_Progress(t *testing.T) {
	files := duplicateMedia(t)
	e := NewMediaExport(files, sink.NewMemorySink("out"))

	var seen []Progress
	if _, err := e.Run(context.Background(), func(p Progress) { seen = append(seen, p) }); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 4 {
		t.Fatalf("observed %d checkpoints, want 4", len(seen))
	}
	var cumulative int64
	for i, p := range seen {
		cumulative += files[i].Size()
		if p.Index != i+1 || p.Total != 4 {
			t.Errorf("checkpoint %d = %d/%d", i, p.Index, p.Total)
		}
		if p.BytesCopied != cumulative {
			t.Errorf("checkpoint %d bytes = %d, want %d", i, p.BytesCopied, cumulative)
		}
		if p.TotalBytes != e.TotalBytes() {
			t.Errorf("checkpoint %d total bytes = %d, want %d", i, p.TotalBytes, e.TotalBytes())
		}
	}
	if seen[1].Label != "IMG_0001_1.JPG" {
		t.Errorf("label = %q, want IMG_0001_1.JPG", seen[1].Label)
	}
}

func TestMediaExport_CancelKeepsCopiedFiles(t *testing.T) {
	out := sink.NewMemorySink("out")
	e := NewMediaExport(duplicateMedia(t), out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observed := 0
	res, err := e.Run(ctx, func(p Progress) {
		observed++
		if observed == 2 {
			cancel()
		}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if res.Exported != observed {
		t.Errorf("Exported = %d, want %d checkpoints observed", res.Exported, observed)
	}
	if got := len(out.Names()); got != 2 {
		t.Errorf("sink holds %d files, want 2", got)
	}
}

func TestMediaExport_AlreadyCancelled(t *testing.T) {
	out := sink.NewMemorySink("out")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewMediaExport(duplicateMedia(t), out).Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if res.Exported != 0 || len(out.Names()) != 0 {
		t.Errorf("Run() = %+v with %d files, want nothing", res, len(out.Names()))
	}
}

func TestMediaExport_StepsRestart(t *testing.T) {
	out := sink.NewMemorySink("out")
	e := NewMediaExport(duplicateMedia(t), out)

	for p := range e.Steps() {
		if p.Index != 1 {
			t.Fatalf("first step index = %d", p.Index)
		}
		break
	}
	if got := len(out.Names()); got != 1 {
		t.Fatalf("after one step sink holds %d files, want 1", got)
	}

	var labels []string
	for p := range e.Steps() {
		labels = append(labels, p.Label)
	}
	want := []string{"IMG_0001.JPG", "IMG_0001_1.JPG", "IMG_0002.MOV", "IMG_0001_2.JPG"}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestMediaExport_MissingPayload(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	files := []*ibex.MediaFile{
		mediaFile(fsys, "Media/DCIM/100APPLE/IMG_0001.JPG", "one", true),
		mediaFile(fsys, "Media/DCIM/100APPLE/IMG_0002.JPG", "gone", false),
	}

	var failed []string
	res, err := NewMediaExport(files, sink.NewMemorySink("out")).Run(context.Background(), func(p Progress) {
		if p.Err != nil {
			failed = append(failed, p.Label)
		}
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Exported != 1 || res.Failed != 1 {
		t.Errorf("Run() = %+v, want 1 exported and 1 failed", res)
	}
	if len(failed) != 1 || failed[0] != "IMG_0002.JPG" {
		t.Errorf("failed checkpoints = %v", failed)
	}
}

func TestMediaExport_Empty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	_, err := NewMediaExport(nil, sink.NewFileSystemSink(dir)).Run(context.Background(), nil)
	if !errors.Is(err, ibex.ErrNothingToExport) {
		t.Errorf("Run() error = %v, want ErrNothingToExport", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("destination created for empty export")
	}
}

func TestMediaExport_AllFail(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	files := []*ibex.MediaFile{mediaFile(fsys, "Media/DCIM/a.jpg", "a", true)}
	_, err := NewMediaExport(files, newFailingSink("a.jpg")).Run(context.Background(), nil)
	if !errors.Is(err, ibex.ErrExportIO) {
		t.Errorf("Run() error = %v, want ErrExportIO", err)
	}
}

// flakyPayloads serves the first bytes of the payloads in broken and then
// fails the read.
type flakyPayloads struct {
	*testutil.MockFilesystem
	broken map[string]bool
}

func (f flakyPayloads) Open(path string) (io.ReadCloser, error) {
	rc, err := f.MockFilesystem.Open(path)
	if err != nil || !f.broken[path] {
		return rc, err
	}
	partial := io.MultiReader(io.LimitReader(rc, 4), iotest.ErrReader(errors.New("input/output error")))
	return io.NopCloser(partial), nil
}

func TestMediaExport_ReadErrorMidCopy(t *testing.T) {
	mock := testutil.NewMockFilesystem()
	good := mediaFile(mock, "Media/DCIM/100APPLE/IMG_0001.JPG", "complete", true)
	bad := mediaFile(mock, "Media/DCIM/100APPLE/IMG_0002.JPG", "truncated payload", true)

	fsys := flakyPayloads{MockFilesystem: mock, broken: map[string]bool{bad.SourcePath: true}}
	files := []*ibex.MediaFile{
		ibex.NewMediaFile(good.Record, mediaRoot, fsys),
		ibex.NewMediaFile(bad.Record, mediaRoot, fsys),
	}

	dir := t.TempDir()
	var failed []Progress
	res, err := NewMediaExport(files, sink.NewFileSystemSink(dir)).Run(context.Background(), func(p Progress) {
		if p.Err != nil {
			failed = append(failed, p)
		}
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Exported != 1 || res.Failed != 1 {
		t.Errorf("Run() = %+v, want 1 exported and 1 failed", res)
	}
	if len(failed) != 1 || failed[0].Label != "IMG_0002.JPG" {
		t.Errorf("failed checkpoints = %+v", failed)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "IMG_0001.JPG" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("destination holds %v, want only IMG_0001.JPG", names)
	}
}
