package cas_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/assetbuilder/internal/adapters/cas"
	"go.trai.ch/assetbuilder/internal/core/domain"
)

func TestStore_PutAndGet(t *testing.T) {
	root := t.TempDir()
	store := cas.NewStore()

	manifest := domain.Manifest{
		BaseURL: "/static/",
		URLs: map[string][]string{
			"js":  {"/static/js/app.js?1a2b3c4d"},
			"css": {"/static/css/a.css?0f0f0f0f", "/static/css/b.css?e1e2e3e4"},
		},
	}

	require.NoError(t, store.Put(root, manifest))

	got, err := store.Get(root)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, manifest, *got)

	_, err = os.Stat(domain.DefaultManifestPath(root) + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")
}

func TestStore_Overwrite(t *testing.T) {
	root := t.TempDir()
	store := cas.NewStore()

	require.NoError(t, store.Put(root, domain.Manifest{BaseURL: "/a/"}))
	require.NoError(t, store.Put(root, domain.Manifest{BaseURL: "/b/"}))

	got, err := store.Get(root)
	require.NoError(t, err)
	assert.Equal(t, "/b/", got.BaseURL)
}

func TestStore_GetMissing(t *testing.T) {
	got, err := cas.NewStore().Get(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_GetCorrupt(t *testing.T) {
	root := t.TempDir()
	path := domain.DefaultManifestPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), domain.FilePerm))

	_, err := cas.NewStore().Get(root)
	require.ErrorIs(t, err, domain.ErrStoreUnmarshalFailed)
}

func TestStore_PutCreateFailed(t *testing.T) {
	root := t.TempDir()
	// A file where the state directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.StateDirName), nil, domain.FilePerm))

	err := cas.NewStore().Put(root, domain.Manifest{})
	require.ErrorIs(t, err, domain.ErrStoreCreateFailed)
}
