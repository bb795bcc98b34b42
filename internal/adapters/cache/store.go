// Package cache implements the dependency cache: one tar.gz archive per
// saved entry plus a flat JSON index.
package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheStore = (*Store)(nil)

// Store implements ports.CacheStore. Entries live under
// <dir>/entries/<scope>/<keyDigest>.tar.gz; the index maps scopes to their
// entries in save order.
type Store struct {
	dir    string
	logger ports.Logger

	mu    sync.RWMutex
	index map[string][]domain.CacheEntry
}

// NewStore creates a Store rooted at dir, loading any existing index.
func NewStore(dir string, logger ports.Logger) (*Store, error) {
	s := &Store{
		dir:    filepath.Clean(dir),
		logger: logger,
		index:  make(map[string][]domain.CacheEntry),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, domain.IndexFileName)
}

func (s *Store) loadIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // Path is cleaned and provided by trusted caller
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "failed to read cache index")
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.index); err != nil {
		return zerr.Wrap(err, "failed to unmarshal cache index")
	}

	return nil
}

func (s *Store) saveIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal cache index")
	}

	if err := os.MkdirAll(s.dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create cache directory")
	}

	//nolint:gosec // Path is cleaned and provided by trusted caller
	if err := os.WriteFile(s.indexPath(), data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, "failed to write cache index")
	}

	return nil
}

// Restore looks up key exactly, then each restore key in order as a prefix
// (newest entry wins), and unpacks the first match into place. A miss is
// not an error.
func (s *Store) Restore(ctx context.Context, scope, key string, restoreKeys, paths []string) (domain.CacheRestore, error) {
	paths = canonicalPaths(paths)

	s.mu.RLock()
	entry, exact, found := s.lookup(scope, key, restoreKeys, paths)
	s.mu.RUnlock()
	if !found {
		return domain.CacheRestore{}, nil
	}

	if err := extractArchive(ctx, entry.Archive, entry.Paths); err != nil {
		return domain.CacheRestore{}, zerr.With(zerr.Wrap(err, "failed to restore cache entry"), "key", entry.Key)
	}
	return domain.CacheRestore{Key: entry.Key, Exact: exact}, nil
}

// lookup requires at least a read lock. Only entries saved with the same
// path list are eligible; restoring an archive into a different layout
// would scatter files.
func (s *Store) lookup(scope, key string, restoreKeys, paths []string) (domain.CacheEntry, bool, bool) {
	entries := s.index[scope]

	for i := range entries {
		if entries[i].Key == key && slices.Equal(entries[i].Paths, paths) {
			return entries[i], true, true
		}
	}

	for _, rk := range restoreKeys {
		best := -1
		for i := range entries {
			if !strings.HasPrefix(entries[i].Key, rk) || !slices.Equal(entries[i].Paths, paths) {
				continue
			}
			if best < 0 || !entries[i].CreatedAt.Before(entries[best].CreatedAt) {
				best = i
			}
		}
		if best >= 0 {
			return entries[best], false, true
		}
	}

	return domain.CacheEntry{}, false, false
}

// Save archives the given paths under key. Saving an already present key is
// a no-op; paths that do not exist are skipped.
func (s *Store) Save(ctx context.Context, scope, key string, paths []string) error {
	paths = canonicalPaths(paths)

	s.mu.RLock()
	_, _, exists := s.lookup(scope, key, nil, paths)
	s.mu.RUnlock()
	if exists {
		s.logger.Debug(fmt.Sprintf("cache key already saved: %s", key))
		return nil
	}

	sources := make(map[string]string, len(paths))
	for i, p := range paths {
		if _, err := os.Stat(p); err != nil {
			s.logger.Warn(fmt.Sprintf("cache path does not exist, skipping: %s", p))
			continue
		}
		sources[p] = strconv.Itoa(i)
	}
	if len(sources) == 0 {
		s.logger.Warn(fmt.Sprintf("no cache paths exist, nothing saved for key %s", key))
		return nil
	}

	archivePath := filepath.Join(s.dir, domain.EntriesDirName, scope, keyDigest(key)+".tar.gz")
	if err := createArchive(ctx, sources, archivePath); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to save cache entry"), "key", key)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return zerr.Wrap(err, "failed to stat cache archive")
	}

	entry := domain.CacheEntry{
		Key:       key,
		Scope:     scope,
		Paths:     paths,
		Archive:   archivePath,
		Size:      info.Size(),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.index[scope] = append(s.index[scope], entry)
	s.mu.Unlock()

	return s.saveIndex()
}

// Entries lists all stored cache entries across scopes.
func (s *Store) Entries() ([]domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CacheEntry
	for _, entries := range s.index {
		out = append(out, entries...)
	}
	slices.SortFunc(out, func(a, b domain.CacheEntry) int {
		if c := cmp.Compare(a.Scope, b.Scope); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out, nil
}

// Clean removes all stored entries and returns the bytes freed.
func (s *Store) Clean() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entriesDir := filepath.Join(s.dir, domain.EntriesDirName)
	freed, err := dirSize(entriesDir)
	if err != nil {
		return 0, err
	}

	if err := os.RemoveAll(entriesDir); err != nil {
		return 0, zerr.Wrap(err, "failed to remove cache entries")
	}
	if err := os.Remove(s.indexPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, zerr.Wrap(err, "failed to remove cache index")
	}

	s.index = make(map[string][]domain.CacheEntry)
	return freed, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, zerr.Wrap(err, "failed to measure cache size")
	}
	return total, nil
}

func canonicalPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func keyDigest(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
