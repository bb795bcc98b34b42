// Package main is the entry point for the gantry workflow runner.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/gantry/cmd/gantry/commands"
	"go.trai.ch/gantry/internal/app"
	"go.trai.ch/gantry/internal/core/domain"
	_ "go.trai.ch/gantry/internal/wiring"
)

// Exit codes: 0 success, 1 at least one job failed, 2 usage or
// configuration errors.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stderr io.Writer,
	provider ComponentProvider,
	opts ...func(*app.App),
) int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize application components
	components, _, err := provider(ctx)
	if err != nil {
		// Logger is not available yet if initialization failed.
		// zerr prints a full report with stack trace and metadata under %+v.
		_, _ = fmt.Fprintf(stderr, "%+v\n", err)
		return exitUsage
	}

	// Apply options
	for _, opt := range opts {
		opt(components.App)
	}

	// 2. Interface - CLI
	cli := commands.New(components.App)
	cli.SetArgs(args)
	cli.SetOutput(os.Stdout, stderr)

	// 3. Execution
	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, domain.ErrRunFailed) {
			return exitFailed
		}
		components.Logger.Error(err)
		return exitUsage
	}
	return exitOK
}
