package fs

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

// resolvePatterns expands glob patterns relative to root into a deduplicated,
// sorted list of file paths. Patterns containing "**" are matched against
// every file under root; plain patterns go through filepath.Glob. Matched
// directories are expanded to the files they contain.
func (h *Hasher) resolvePatterns(root string, patterns []string) ([]string, error) {
	unique := make(map[string]bool)

	for _, pattern := range patterns {
		if strings.Contains(pattern, "**") {
			matches, err := h.matchRecursive(root, pattern)
			if err != nil {
				return nil, err
			}
			for _, match := range matches {
				unique[match] = true
			}
			continue
		}

		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "invalid glob pattern"), "pattern", pattern)
		}
		for _, match := range matches {
			info, statErr := os.Stat(match)
			if statErr != nil {
				// Matched path vanished between glob and stat.
				continue
			}
			if info.IsDir() {
				for file := range h.walker.WalkFiles(match, nil) {
					unique[file] = true
				}
				continue
			}
			unique[match] = true
		}
	}

	result := make([]string, 0, len(unique))
	for p := range unique {
		result = append(result, p)
	}
	sort.Strings(result)

	return result, nil
}

// matchRecursive walks all files under root and matches their slash-separated
// relative paths against pattern, where "**" spans any number of segments.
func (h *Hasher) matchRecursive(root, pattern string) ([]string, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}

	patternSegments := strings.Split(pattern, "/")

	var matches []string
	for file := range h.walker.WalkFiles(root, nil) {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			continue
		}
		if matchSegments(patternSegments, strings.Split(filepath.ToSlash(rel), "/")) {
			matches = append(matches, file)
		}
	}
	return matches, nil
}

// matchSegments reports whether the path segments match the pattern segments.
// A "**" pattern segment matches zero or more path segments.
func matchSegments(pattern, segments []string) bool {
	if len(pattern) == 0 {
		return len(segments) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], segments) {
			return true
		}
		if len(segments) > 0 {
			return matchSegments(pattern, segments[1:])
		}
		return false
	}
	if len(segments) == 0 {
		return false
	}
	if matched, err := path.Match(pattern[0], segments[0]); err != nil || !matched {
		return false
	}
	return matchSegments(pattern[1:], segments[1:])
}

// validatePattern rejects malformed glob segments before any files are
// matched.
func validatePattern(pattern string) error {
	for _, segment := range strings.Split(pattern, "/") {
		if segment == "**" {
			continue
		}
		if _, err := path.Match(segment, ""); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid glob pattern"), "pattern", pattern)
		}
	}
	return nil
}
