package registry

import (
	"context"
	"os"
	"time"

	"go.trai.ch/assetbuilder/internal/core/domain"
)

// Token returns the cache-buster of the ordered asset tuple vpaths. With
// autobuild, every asset is brought up to date first. The stored value is
// reused until a member's mtime moves past the stored mtime.
func (r *Registry) Token(ctx context.Context, vpaths ...string) (string, error) {
	if len(vpaths) == 0 {
		return "", domain.ErrAssetNotFound
	}

	assets, err := r.lookupAll(vpaths)
	if err != nil {
		return "", err
	}

	if r.autobuild {
		for _, asset := range assets {
			if err := r.EnsureUpToDate(ctx, asset.VirtualPath); err != nil {
				return "", err
			}
		}
	}

	return r.cacheBuster(assets, false).Hash, nil
}

// updateCacheBuster recomputes the single-asset cache-buster after a build.
func (r *Registry) updateCacheBuster(asset *domain.Asset) {
	r.cacheBuster([]*domain.Asset{asset}, true)
}

func (r *Registry) cacheBuster(assets []*domain.Asset, force bool) domain.CacheBuster {
	keys := make([]string, len(assets))
	paths := make([]string, len(assets))
	for i, asset := range assets {
		keys[i] = asset.VirtualPath
		paths[i] = asset.Path
	}
	key := domain.NewCacheBusterKey(keys...)

	r.mu.RLock()
	entry, ok := r.cacheBusters[key]
	r.mu.RUnlock()

	if ok && !force && !newestMtime(paths).After(entry.Mtime) {
		return entry
	}

	entry = r.hasher.CacheBuster(paths)

	r.mu.Lock()
	r.cacheBusters[key] = entry
	r.mu.Unlock()
	return entry
}

// newestMtime returns the latest mtime among paths, skipping missing files.
func newestMtime(paths []string) time.Time {
	var newest time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if mtime := info.ModTime(); mtime.After(newest) {
			newest = mtime
		}
	}
	return newest
}
