// Package cas persists the content-addressed URL manifest: every tag mapped
// to the cache-busted URLs of its assets.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.ManifestStore with a JSON file under the state directory.
type Store struct{}

var _ ports.ManifestStore = (*Store)(nil)

// NewStore creates a new ManifestStore.
func NewStore() *Store {
	return &Store{}
}

// Get reads the manifest under root.
func (s *Store) Get(root string) (*domain.Manifest, error) {
	filename := domain.DefaultManifestPath(root)
	//nolint:gosec // Path is constructed from the configured root
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrStoreReadFailed, err.Error()), "path", filename)
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrStoreUnmarshalFailed, err.Error()), "path", filename)
	}

	return &manifest, nil
}

// Put writes the manifest under root, replacing any previous one.
func (s *Store) Put(root string, manifest domain.Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return zerr.Wrap(domain.ErrStoreMarshalFailed, err.Error())
	}

	filename := domain.DefaultManifestPath(root)
	if err := os.MkdirAll(filepath.Dir(filename), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrStoreCreateFailed, err.Error()), "path", filename)
	}

	tmp := filename + ".tmp"
	//nolint:gosec // Path is constructed from the configured root
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrStoreWriteFailed, err.Error()), "path", filename)
	}
	if err := os.Rename(tmp, filename); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(domain.ErrStoreWriteFailed, err.Error()), "path", filename)
	}

	return nil
}
