package runner

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/gantry/internal/adapters/cache"
	"go.trai.ch/gantry/internal/adapters/expr"
	"go.trai.ch/gantry/internal/adapters/git"
	"go.trai.ch/gantry/internal/adapters/logger"
	"go.trai.ch/gantry/internal/adapters/shell"
	"go.trai.ch/gantry/internal/adapters/telemetry/progrock"
	"go.trai.ch/gantry/internal/adapters/toolchain"
	"go.trai.ch/gantry/internal/core/ports"
)

const NodeID graft.ID = "engine.runner"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			git.NodeID,
			cache.NodeID,
			toolchain.EnvFactoryNodeID,
			expr.NodeID,
			progrock.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Runner, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
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
			envs, err := graft.Dep[ports.EnvironmentFactory](ctx)
			if err != nil {
				return nil, err
			}
			evaluator, err := graft.Dep[ports.Evaluator](ctx)
			if err != nil {
				return nil, err
			}
			telemetry, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewRunner(executor, scm, store, envs, evaluator, telemetry, log), nil
		},
	})
}
