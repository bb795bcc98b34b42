// Package fs provides file system adapters for walking and hashing files.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields all files under root, pruning version control metadata
// and entries matching the ignore patterns. Paths are yielded as
// filepath.WalkDir produces them, starting with root.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if w.pruneDir(d.Name(), ignores) {
					return filepath.SkipDir
				}
				return nil
			}

			if matchesAny(ignores, d.Name()) {
				return nil
			}

			if !yield(path) {
				return filepath.SkipAll
			}

			return nil
		})
	}
}

// pruneDir reports whether a directory should be skipped entirely.
// Version control metadata is always pruned.
func (w *Walker) pruneDir(name string, ignores []string) bool {
	if name == ".git" || name == ".jj" {
		return true
	}
	return matchesAny(ignores, name)
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
