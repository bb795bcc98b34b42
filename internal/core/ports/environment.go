package ports

import (
	"context"
)

// EnvironmentFactory constructs execution environments from tool specifications.
//
// Implementations are responsible for:
//   - Resolving tool specifications (e.g., "python" -> "3.7") to installed toolchains
//   - Constructing environment variables (PATH, <TOOL>_HOME) for step execution
//
//go:generate go run go.uber.org/mock/mockgen -source=environment.go -destination=mocks/mock_environment.go -package=mocks
type EnvironmentFactory interface {
	// GetEnvironment constructs an environment fragment from a set of tools.
	//
	// The tools map contains alias->version pairs (e.g., "python" -> "3.7").
	// Returns environment variables as "KEY=VALUE" strings suitable for
	// merging into a step's process environment. PATH entries are meant to
	// be prepended to the ambient PATH.
	//
	// Returns an error if any tool cannot be resolved.
	GetEnvironment(ctx context.Context, tools map[string]string) ([]string, error)
}
