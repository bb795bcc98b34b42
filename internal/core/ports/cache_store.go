package ports

import (
	"context"

	"go.trai.ch/gantry/internal/core/domain"
)

// CacheStore defines the interface for the dependency cache.
//
//go:generate go run go.uber.org/mock/mockgen -source=cache_store.go -destination=mocks/mock_cache_store.go -package=mocks
type CacheStore interface {
	// Restore looks up key exactly, then each restore key in order as a
	// prefix (newest entry wins), and unpacks the first match into place.
	// A miss is not an error; the zero CacheRestore reports it.
	Restore(ctx context.Context, scope, key string, restoreKeys, paths []string) (domain.CacheRestore, error)

	// Save archives the given paths under key. Saving an already present
	// key is a no-op. Paths that do not exist are skipped.
	Save(ctx context.Context, scope, key string, paths []string) error

	// Entries lists all stored cache entries across scopes.
	Entries() ([]domain.CacheEntry, error)

	// Clean removes all stored entries and returns the bytes freed.
	Clean() (int64, error)
}
