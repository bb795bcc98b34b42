package ports

import (
	"context"

	"go.trai.ch/gantry/internal/core/domain"
)

// ToolResolver locates an installed tool matching a version request.
//
//go:generate go run go.uber.org/mock/mockgen -source=toolchain.go -destination=mocks/mock_toolchain.go -package=mocks
type ToolResolver interface {
	// Resolve resolves a tool name and version request (e.g., "python",
	// "3.7") to an installed toolchain. Partial versions match pessimistically,
	// so "3.7" admits any 3.7.x and the newest match wins.
	Resolve(ctx context.Context, name, version string) (domain.Tool, error)
}
