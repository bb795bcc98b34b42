package toolchain

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/gantry/internal/adapters/logger"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	ResolverNodeID   graft.ID = "adapter.toolchain.resolver"
	EnvFactoryNodeID graft.ID = "adapter.toolchain.env_factory"
)

func init() {
	graft.Register(graft.Node[ports.ToolResolver]{
		ID:        ResolverNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ToolResolver, error) {
			dir, err := toolsDir()
			if err != nil {
				return nil, err
			}
			return NewIndex(dir)
		},
	})

	graft.Register(graft.Node[ports.EnvironmentFactory]{
		ID:        EnvFactoryNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{ResolverNodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.EnvironmentFactory, error) {
			resolver, err := graft.Dep[ports.ToolResolver](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			cacheDir, err := toolsetCacheDir()
			if err != nil {
				return nil, err
			}
			return NewEnvFactory(resolver, log, cacheDir), nil
		},
	})
}

// toolsDir resolves the tool index location, honoring GANTRY_TOOLS_DIR.
func toolsDir() (string, error) {
	if dir := os.Getenv("GANTRY_TOOLS_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve user home directory")
	}
	return filepath.Join(home, domain.GantryDirName, "tools"), nil
}

// toolsetCacheDir resolves where resolved toolset environments are cached.
func toolsetCacheDir() (string, error) {
	if dir := os.Getenv("GANTRY_CACHE_DIR"); dir != "" {
		return filepath.Join(dir, "toolsets"), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve user cache directory")
	}
	return filepath.Join(base, "gantry", "toolsets"), nil
}
