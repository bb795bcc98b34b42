// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"
)

// ExecSpec describes one process invocation on behalf of a run step.
type ExecSpec struct {
	// Command is the shell command line to execute.
	Command string

	// Shell is the interpreter for Command. Empty means "sh".
	Shell string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is the complete environment in "KEY=VALUE" format. A nil Env
	// inherits the current process environment.
	Env []string

	// Stdout and Stderr receive the process output streams. When nil the
	// executor falls back to the vertex carried by the context, then to
	// the logger.
	Stdout io.Writer
	Stderr io.Writer
}

// Executor defines the interface for executing step commands.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the given command spec.
	//
	// A non-zero exit status is returned as an error carrying the exit code
	// as metadata.
	Execute(ctx context.Context, spec ExecSpec) error
}
