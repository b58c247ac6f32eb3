package fs

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes cache-busters with xxhash.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// CacheBuster streams every file, in order, into a single digest and tracks
// the newest mtime. Files that cannot be stat'ed or read are skipped, so a
// missing member degrades the digest instead of failing.
func (h *Hasher) CacheBuster(paths []string) domain.CacheBuster {
	digest := xxhash.New()
	var cb domain.CacheBuster

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(cb.Mtime) {
			cb.Mtime = info.ModTime()
		}
		_ = hashFile(path, digest)
	}

	cb.Hash = fmt.Sprintf("%016x", digest.Sum64())[:domain.CacheBusterLength]
	return cb
}

func hashFile(path string, w io.Writer) error {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	_, err = io.Copy(w, f)
	return err
}
