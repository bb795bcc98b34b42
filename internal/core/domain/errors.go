package domain

import "go.trai.ch/zerr"

var (
	// ErrDuplicateJob is returned when a workflow declares two jobs that expand
	// to the same instance key.
	ErrDuplicateJob = zerr.New("job already exists")

	// ErrMissingDependency is returned when a job needs another job that doesn't exist.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a cycle is detected in the job dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrWorkflowNotFound is returned when a requested workflow is not among the loaded ones.
	ErrWorkflowNotFound = zerr.New("workflow not found")

	// ErrNoWorkflows is returned when discovery finds no workflow files.
	ErrNoWorkflows = zerr.New("no workflows found")

	// ErrRunFailed is returned when at least one job of a run failed.
	// The CLI maps it to a non-zero exit code.
	ErrRunFailed = zerr.New("run failed")

	// ErrToolNotFound is returned when a setup step requests a tool that is
	// neither installed nor discoverable on the host.
	ErrToolNotFound = zerr.New("tool not found")

	// ErrNotARepository is returned when event synthesis or checkout runs
	// outside a git worktree.
	ErrNotARepository = zerr.New("not a git repository")

	// ErrStaleEvent is returned when the head commit is older than the
	// configured maximum event age.
	ErrStaleEvent = zerr.New("stale event")
)
