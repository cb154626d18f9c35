package fs

import (
	"bufio"
	"errors"
	"fmt"
	iofs "io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// IgnoreFileName is the optional per-root file listing extra ignore patterns.
// Like every dot-prefixed entry it is never treated as content.
const IgnoreFileName = ".filehostignore"

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match the whole relative path; false = the basename only
}

// IgnoreMatcher decides which files the reconciliation walk skips.
// Patterns without '/' match the basename, patterns with '/' match the
// slash-separated path relative to the upload root.
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
		patterns = append(patterns, ignorePattern{
			pattern:   strings.TrimPrefix(raw, "/"),
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether relativePath (slash-separated) should be skipped.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if relativePath == "" {
		return false
	}
	base := path.Base(relativePath)
	for _, p := range m.patterns {
		subject := base
		if p.matchPath {
			subject = relativePath
		}
		// A malformed pattern never matches.
		if ok, err := path.Match(p.pattern, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads ignore patterns from name on fsys.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(fsys afero.Fs, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
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
