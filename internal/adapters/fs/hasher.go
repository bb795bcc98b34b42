package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes content digests for cache keys.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// HashFile computes the XXHash of a file's content.
func (h *Hasher) HashFile(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// HashFiles computes a single digest over all files matching the glob
// patterns, resolved relative to root. Matches are deduplicated and sorted,
// so the digest does not depend on pattern order. No matches at all yields
// the empty string.
func (h *Hasher) HashFiles(root string, patterns []string) (string, error) {
	paths, err := h.resolvePatterns(root, patterns)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", nil
	}

	hasher := xxhash.New()
	for _, path := range paths {
		if err := h.hashEntry(root, path, hasher); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

// hashEntry writes one file's relative path and content hash into the digest.
func (h *Hasher) hashEntry(root, path string, hasher *xxhash.Digest) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to relativize path"), "path", path)
	}

	// Slash-separated relative paths keep the digest stable across
	// checkout locations and operating systems.
	_, _ = hasher.WriteString(filepath.ToSlash(rel))
	_, _ = hasher.Write([]byte{0})

	sum, err := h.HashFile(path)
	if err != nil {
		return err
	}
	if err := binary.Write(hasher, binary.LittleEndian, sum); err != nil {
		return zerr.Wrap(err, "failed to write hash to digest")
	}
	return nil
}
