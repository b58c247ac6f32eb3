// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/assetbuilder/internal/adapters/cas"
	_ "go.trai.ch/assetbuilder/internal/adapters/config"
	_ "go.trai.ch/assetbuilder/internal/adapters/fs"
	_ "go.trai.ch/assetbuilder/internal/adapters/logger"
	_ "go.trai.ch/assetbuilder/internal/adapters/shell"
	_ "go.trai.ch/assetbuilder/internal/adapters/telemetry"
	_ "go.trai.ch/assetbuilder/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/assetbuilder/internal/app"
)
