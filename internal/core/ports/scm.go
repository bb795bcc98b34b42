package ports

import (
	"context"

	"go.trai.ch/gantry/internal/core/domain"
)

// SourceControl defines the interface for repository interrogation and
// checkout steps.
//
//go:generate go run go.uber.org/mock/mockgen -source=scm.go -destination=mocks/mock_scm.go -package=mocks
type SourceControl interface {
	// DescribeHead synthesizes a push event from the repository head:
	// ref, commit hash, author, remote url, and commit time.
	DescribeHead(ctx context.Context, root string) (domain.PushEvent, error)

	// Checkout materializes the requested source state in the worktree.
	// With an empty ref the current worktree is used in place.
	Checkout(ctx context.Context, root string, spec domain.CheckoutSpec) error
}
