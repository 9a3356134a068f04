package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"
)

// ignorePattern is a parsed exclusion pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against device path; false = match against basename only
}

// IgnoreMatcher checks device-relative paths against exclusion patterns.
// Patterns without '/' match the basename only. Patterns with '/' match the
// full relative path or any of its leading directories, so
// "Media/PhotoData/Thumbnails" excludes everything below that folder.
// Device paths always use '/' regardless of the host platform.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.TrimSuffix(raw, "/")
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Len returns the number of active patterns.
func (m *IgnoreMatcher) Len() int { return len(m.patterns) }

// Match reports whether relativePath should be excluded.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	basename := path.Base(relativePath)
	for _, p := range m.patterns {
		if !p.matchPath {
			if ok, err := path.Match(p.pattern, basename); err == nil && ok {
				return true
			}
			continue
		}
		for prefix := relativePath; prefix != "." && prefix != "/"; prefix = path.Dir(prefix) {
			matched, err := path.Match(p.pattern, prefix)
			if err != nil {
				// Bad pattern, skip it.
				break
			}
			if matched {
				return true
			}
		}
	}
	return false
}

// ParseIgnoreFile reads an exclusion file, one pattern per line, and returns
// the raw lines. Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
