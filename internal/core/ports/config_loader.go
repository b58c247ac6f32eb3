package ports

import "go.trai.ch/assetbuilder/internal/core/domain"

// ConfigLoader defines the interface for loading the asset configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration at path, or discovers assetbuilder.yaml
	// from cwd upwards when path is empty.
	Load(cwd, path string) (*domain.Settings, error)
}
