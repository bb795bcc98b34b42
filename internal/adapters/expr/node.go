package expr

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/gantry/internal/adapters/fs"
	"go.trai.ch/gantry/internal/core/ports"
)

const NodeID graft.ID = "adapter.expr"

func init() {
	graft.Register(graft.Node[ports.Evaluator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.HasherNodeID},
		Run: func(ctx context.Context) (ports.Evaluator, error) {
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewEngine(hasher), nil
		},
	})
}
