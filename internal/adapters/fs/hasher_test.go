package fs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/assetbuilder/internal/adapters/fs"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestHasher_CacheBuster(t *testing.T) {
	tmpDir := t.TempDir()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	a := filepath.Join(tmpDir, "a.js")
	b := filepath.Join(tmpDir, "b.js")
	writeFile(t, a, "alpha", newer)
	writeFile(t, b, "beta", older)

	h := fs.NewHasher()
	cb := h.CacheBuster([]string{a, b})

	assert.Len(t, cb.Hash, 8)
	assert.True(t, cb.Mtime.Equal(newer))
	assert.Equal(t, cb, h.CacheBuster([]string{a, b}), "deterministic")
	assert.NotEqual(t, cb.Hash, h.CacheBuster([]string{b, a}).Hash, "order matters")
}

func TestHasher_CacheBuster_ContentChange(t *testing.T) {
	tmpDir := t.TempDir()
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := filepath.Join(tmpDir, "a.js")

	h := fs.NewHasher()
	writeFile(t, a, "v1", mtime)
	first := h.CacheBuster([]string{a})

	writeFile(t, a, "v2", mtime)
	second := h.CacheBuster([]string{a})

	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestHasher_CacheBuster_SkipsMissingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := filepath.Join(tmpDir, "a.js")
	writeFile(t, a, "alpha", mtime)

	h := fs.NewHasher()
	withMissing := h.CacheBuster([]string{a, filepath.Join(tmpDir, "missing.js")})

	assert.Equal(t, h.CacheBuster([]string{a}), withMissing)
}

func TestHasher_CacheBuster_AllMissing(t *testing.T) {
	cb := fs.NewHasher().CacheBuster([]string{filepath.Join(t.TempDir(), "missing.js")})

	assert.True(t, cb.Mtime.IsZero())
	assert.Len(t, cb.Hash, 8)
}
