package ports

import "go.trai.ch/assetbuilder/internal/core/domain"

// ManifestStore persists the generated URL manifest.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ManifestStore interface {
	// Get reads the manifest under root.
	// Returns nil, nil if not found.
	Get(root string) (*domain.Manifest, error)

	// Put writes the manifest under root.
	Put(root string, manifest domain.Manifest) error
}
