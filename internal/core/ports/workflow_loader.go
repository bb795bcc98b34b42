package ports

import "go.trai.ch/gantry/internal/core/domain"

// WorkflowLoader defines the interface for loading workflow definitions.
//
//go:generate mockgen -source=workflow_loader.go -destination=mocks/mock_workflow_loader.go -package=mocks
type WorkflowLoader interface {
	// LoadDir discovers and loads all workflow files under the repository root.
	// Workflows are returned sorted by source filename.
	LoadDir(root string) ([]domain.Workflow, error)

	// LoadFile loads a single workflow file.
	LoadFile(path string) (domain.Workflow, error)
}
