// Package toolchain resolves setup-step tools against the local tool index
// and builds the environment fragments that expose them to step commands.
package toolchain

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ToolResolver = (*Index)(nil)

// Index implements ports.ToolResolver over the on-disk tool index.
type Index struct {
	dir   string
	tools []domain.Tool
}

// NewIndex loads the tool index from dir. A missing index file yields an
// empty index; setup steps then fall back to host tools.
func NewIndex(dir string) (*Index, error) {
	ix := &Index{dir: dir}
	if err := ix.load(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) load() error {
	path := filepath.Join(ix.dir, domain.IndexFileName)
	data, err := os.ReadFile(path) //nolint:gosec // Path is cleaned and provided by trusted caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "failed to read tool index")
	}

	var index domain.ToolIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return zerr.Wrap(err, "failed to parse tool index")
	}

	ix.tools = index.Tools
	return nil
}

// Resolve finds the newest installed tool satisfying the version request.
func (ix *Index) Resolve(_ context.Context, name, versionReq string) (domain.Tool, error) {
	constraints, err := version.NewConstraint(constraintFor(versionReq))
	if err != nil {
		return domain.Tool{}, zerr.With(zerr.Wrap(err, "invalid tool version request"), "version", versionReq)
	}

	var (
		best        domain.Tool
		bestVersion *version.Version
	)
	for _, tool := range ix.tools {
		if tool.Name.String() != name {
			continue
		}
		v, err := version.NewVersion(tool.Version.String())
		if err != nil {
			continue
		}
		if !constraints.Check(v) {
			continue
		}
		if bestVersion == nil || v.GreaterThan(bestVersion) {
			best = tool
			bestVersion = v
		}
	}

	if bestVersion == nil {
		return domain.Tool{}, zerr.With(zerr.With(domain.ErrToolNotFound, "tool", name), "version", versionReq)
	}
	return best, nil
}

// constraintFor maps a version request to a constraint string. Partial
// versions match pessimistically: "3" admits any 3.x and "3.7" any 3.7.x.
// Full versions match exactly.
func constraintFor(versionReq string) string {
	if strings.Count(versionReq, ".") < 2 {
		return "~> " + versionReq + ".0"
	}
	return "= " + versionReq
}
