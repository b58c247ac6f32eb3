package ports

import "go.trai.ch/assetbuilder/internal/core/domain"

// Hasher computes cache-busters over file contents.
//
//go:generate mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type Hasher interface {
	// CacheBuster streams the files in order into one digest and reports the
	// newest mtime seen. Files that cannot be read are skipped.
	CacheBuster(paths []string) domain.CacheBuster
}
