package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/assetbuilder/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/assetbuilder/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/assetbuilder/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/assetbuilder/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/assetbuilder/internal/adapters/shell"     //nolint:depguard // Wired in app layer
	"go.trai.ch/assetbuilder/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/assetbuilder/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/assetbuilder/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			shell.NodeID,
			fs.ResolverNodeID,
			fs.HasherNodeID,
			cas.NodeID,
			telemetry.TracerNodeID,
			watcher.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			config.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	runner, err := graft.Dep[ports.Runner](ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := graft.Dep[ports.DependencyResolver](ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := graft.Dep[ports.Hasher](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.ManifestStore](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	newWatcher, err := graft.Dep[watcher.Factory](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, log, runner, resolver, hasher, store, tracer, newWatcher), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	a, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:          a,
		Logger:       log,
		ConfigLoader: loader,
	}, nil
}
