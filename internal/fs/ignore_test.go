package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	m := NewIgnoreMatcher([]string{"", "   ", "# thumbnails", "*.THM", "Media/PhotoData/Metadata/"})
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if got := m.patterns[0]; got.pattern != "*.THM" || got.matchPath {
		t.Errorf("patterns[0] = %+v, want basename pattern *.THM", got)
	}
	if got := m.patterns[1]; got.pattern != "Media/PhotoData/Metadata" || !got.matchPath {
		t.Errorf("patterns[1] = %+v, want path pattern without trailing slash", got)
	}
}

func TestIgnoreMatcher_Match(t *testing.T) {
	const img = "Media/DCIM/100APPLE/IMG_0001.HEIC"

	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"no patterns", nil, img, false},
		{"empty path", []string{"*"}, "", false},
		{"basename glob at any depth", []string{"*.THM"}, "Media/DCIM/100APPLE/IMG_0002.THM", true},
		{"basename glob other extension", []string{"*.THM"}, img, false},
		{"exact basename", []string{".MISC"}, "Media/DCIM/.MISC", true},
		{"single char wildcard", []string{"IMG_000?.HEIC"}, img, true},
		{"single char wildcard is one rune", []string{"IMG_00?.HEIC"}, img, false},
		{"character class", []string{"*.[HJ]*"}, img, true},
		{"path pattern exact", []string{"Media/DCIM/100APPLE/IMG_0001.HEIC"}, img, true},
		{"path pattern excludes folder contents", []string{"Media/PhotoData/Thumbnails"}, "Media/PhotoData/Thumbnails/V2/DCIM/IMG_0001.JPG", true},
		{"trailing slash folder", []string{"Media/PhotoData/Metadata/"}, "Media/PhotoData/Metadata/DCIM/100APPLE/IMG_0001.JPG", true},
		{"glob inside folder segment", []string{"Media/PhotoData/*Thumb*"}, "Media/PhotoData/ThumbnailsV2/x.jpg", true},
		{"path pattern leaves siblings", []string{"Media/PhotoData/Thumbnails"}, img, false},
		{"path pattern is anchored", []string{"DCIM/100APPLE"}, img, false},
		{"malformed pattern skipped", []string{"Media/[", "*.HEIC"}, img, true},
		{"any pattern matches", []string{"*.MOV", "*.HEIC"}, img, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewIgnoreMatcher(tt.patterns).Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) with %q = %v, want %v", tt.path, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media-exclude")
	content := "# camera roll noise\n*.THM\n\nMedia/PhotoData/Thumbnails\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing exclude file: %v", err)
	}

	lines, err := ParseIgnoreFile(path)
	if err != nil {
		t.Fatalf("ParseIgnoreFile() error = %v", err)
	}
	if len(lines) != 4 {
		t.Fatalf("ParseIgnoreFile() returned %d lines, want 4 raw lines", len(lines))
	}
	m := NewIgnoreMatcher(lines)
	if m.Len() != 2 || !m.Match("Media/PhotoData/Thumbnails/a.jpg") {
		t.Errorf("matcher from file: Len() = %d", m.Len())
	}

	lines, err = ParseIgnoreFile(filepath.Join(t.TempDir(), "absent"))
	if err != nil || lines != nil {
		t.Errorf("missing file = %v, %v; want nil, nil", lines, err)
	}
}
