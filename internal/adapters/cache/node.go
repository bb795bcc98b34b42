package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/gantry/internal/adapters/logger"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

const NodeID graft.ID = "adapter.cache_store"

func init() {
	graft.Register(graft.Node[ports.CacheStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.CacheStore, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			dir, err := storeDir()
			if err != nil {
				return nil, err
			}
			return NewStore(dir, log)
		},
	})
}

// storeDir resolves the cache location, honoring GANTRY_CACHE_DIR.
func storeDir() (string, error) {
	if dir := os.Getenv("GANTRY_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve user cache directory")
	}
	return filepath.Join(base, "gantry"), nil
}
