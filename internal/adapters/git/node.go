package git

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/gantry/internal/adapters/logger"
	"go.trai.ch/gantry/internal/core/ports"
)

const NodeID graft.ID = "adapter.git"

func init() {
	graft.Register(graft.Node[ports.SourceControl]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.SourceControl, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewClient(log), nil
		},
	})
}
