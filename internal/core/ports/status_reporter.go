package ports

import (
	"context"

	"go.trai.ch/gantry/internal/core/domain"
)

// StatusReporter publishes run conclusions to an external commit status API.
//
//go:generate go run go.uber.org/mock/mockgen -source=status_reporter.go -destination=mocks/mock_status_reporter.go -package=mocks
type StatusReporter interface {
	// Report posts the run result as a commit status for the event's commit.
	Report(ctx context.Context, ev domain.PushEvent, result *domain.RunResult) error
}
