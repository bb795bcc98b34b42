package toolchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.EnvironmentFactory = (*EnvFactory)(nil)

// EnvFactory implements ports.EnvironmentFactory on top of the tool index.
type EnvFactory struct {
	resolver ports.ToolResolver
	logger   ports.Logger
	cacheDir string
}

// NewEnvFactory creates a new EnvironmentFactory with the given toolset
// cache directory.
func NewEnvFactory(resolver ports.ToolResolver, logger ports.Logger, cacheDir string) *EnvFactory {
	return &EnvFactory{
		resolver: resolver,
		logger:   logger,
		cacheDir: cacheDir,
	}
}

// GetEnvironment constructs an environment fragment from a set of tools.
// Tools present in the index contribute a PATH entry and an <ALIAS>_HOME
// variable. Tools absent from the index but found on the host PATH resolve
// to the host installation and contribute nothing.
func (e *EnvFactory) GetEnvironment(ctx context.Context, tools map[string]string) ([]string, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	toolsetID := domain.GenerateToolsetID(tools)
	cachePath := filepath.Join(e.cacheDir, toolsetID+".json")
	if env, err := loadEnvFromCache(cachePath); err == nil {
		return env, nil
	}

	var (
		mu       sync.Mutex
		resolved []domain.Tool
		hostOnly bool
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for alias, spec := range tools {
		g.Go(func() error {
			tool, err := e.resolver.Resolve(groupCtx, alias, spec)
			if err != nil {
				if !errors.Is(err, domain.ErrToolNotFound) {
					return zerr.Wrap(err, "failed to resolve tool")
				}
				// Not installed; fall back to whatever the host provides.
				hostPath, lookErr := exec.LookPath(alias)
				if lookErr != nil {
					return err
				}
				e.logger.Warn(fmt.Sprintf("tool %s@%s not in index, using host %s", alias, spec, hostPath))
				mu.Lock()
				hostOnly = true
				mu.Unlock()
				return nil
			}

			mu.Lock()
			resolved = append(resolved, tool)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	env := buildFragments(resolved)

	// Host-resolved tools make the fragment dependent on mutable host
	// state; don't cache those.
	if !hostOnly {
		if err := saveEnvToCache(cachePath, env); err != nil {
			e.logger.Warn(fmt.Sprintf("failed to cache toolset environment: %v", err))
		}
	}

	return env, nil
}

// buildFragments turns resolved tools into sorted KEY=VALUE fragments with a
// single combined PATH entry.
func buildFragments(tools []domain.Tool) []string {
	slices.SortFunc(tools, func(a, b domain.Tool) int {
		return strings.Compare(a.Name.String(), b.Name.String())
	})

	var (
		env     []string
		binDirs []string
	)
	for _, tool := range tools {
		root := tool.Root.String()
		binDirs = append(binDirs, filepath.Join(root, "bin"))
		env = append(env, homeKey(tool.Name.String())+"="+root)
	}
	if len(binDirs) > 0 {
		env = append(env, "PATH="+strings.Join(binDirs, string(os.PathListSeparator)))
	}

	slices.Sort(env)
	return env
}

// homeKey derives the <ALIAS>_HOME variable name from a tool alias.
func homeKey(alias string) string {
	key := strings.ToUpper(alias)
	key = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, key)
	return key + "_HOME"
}

func loadEnvFromCache(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is constructed from trusted cache directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, zerr.Wrap(err, "failed to read toolset cache")
	}

	var env []string
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, zerr.Wrap(err, "failed to unmarshal toolset cache")
	}
	return env, nil
}

func saveEnvToCache(path string, env []string) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create toolset cache directory")
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal toolset environment")
	}

	//nolint:gosec // Path is constructed from trusted cache directory
	if err := os.WriteFile(path, data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, "failed to write toolset cache")
	}
	return nil
}
