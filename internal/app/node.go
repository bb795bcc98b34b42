package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/gantry/internal/adapters/cache"  //nolint:depguard // Wired in app layer
	"go.trai.ch/gantry/internal/adapters/config" //nolint:depguard // Wired in app layer
	"go.trai.ch/gantry/internal/adapters/git"    //nolint:depguard // Wired in app layer
	"go.trai.ch/gantry/internal/adapters/github" //nolint:depguard // Wired in app layer
	"go.trai.ch/gantry/internal/adapters/logger"  //nolint:depguard // Wired in app layer
	"go.trai.ch/gantry/internal/adapters/watcher" //nolint:depguard // Wired in app layer
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/gantry/internal/engine/planner"
	"go.trai.ch/gantry/internal/engine/scheduler"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			planner.NodeID,
			scheduler.NodeID,
			git.NodeID,
			cache.NodeID,
			github.NodeID,
			watcher.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			application, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{
				App:    application,
				Logger: log,
			}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.WorkflowLoader](ctx)
	if err != nil {
		return nil, err
	}

	plan, err := graft.Dep[*planner.Planner](ctx)
	if err != nil {
		return nil, err
	}

	sched, err := graft.Dep[*scheduler.Scheduler](ctx)
	if err != nil {
		return nil, err
	}

	scm, err := graft.Dep[ports.SourceControl](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.CacheStore](ctx)
	if err != nil {
		return nil, err
	}

	reporter, err := graft.Dep[ports.StatusReporter](ctx)
	if err != nil {
		return nil, err
	}

	watch, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, plan, sched, scm, store, reporter, watch, log), nil
}
