package github

import (
	"context"
	"fmt"

	"github.com/grindlemire/graft"
	"go.trai.ch/gantry/internal/adapters/logger"
	"go.trai.ch/gantry/internal/core/ports"
)

const NodeID graft.ID = "adapter.status_reporter"

func init() {
	graft.Register(graft.Node[ports.StatusReporter]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.StatusReporter, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			// Reporting is opt-in; broken credential helpers must not take
			// down commands that never report.
			token, err := ResolveToken(ctx)
			if err != nil {
				log.Warn(fmt.Sprintf("github token resolution failed: %v", err))
				token = ""
			}
			if token == "" {
				log.Debug("no GitHub credentials found, status reporting will be unauthenticated")
			}
			return NewReporter(token, log), nil
		},
	})
}
