package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/assetbuilder/internal/core/ports"
)

const (
	// ResolverNodeID is the unique identifier for the dependency resolver Graft node.
	ResolverNodeID graft.ID = "adapter.resolver"
	// HasherNodeID is the unique identifier for the hasher Graft node.
	HasherNodeID graft.ID = "adapter.hasher"
)

func init() {
	graft.Register(graft.Node[ports.DependencyResolver]{
		ID:        ResolverNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.DependencyResolver, error) {
			return NewResolver(), nil
		},
	})

	graft.Register(graft.Node[ports.Hasher]{
		ID:        HasherNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Hasher, error) {
			return NewHasher(), nil
		},
	})
}
