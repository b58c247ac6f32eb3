package registry

import (
	"context"
	"os"
	"strings"

	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/zerr"
)

// Cat returns the contents of every asset carrying any of tags, joined by
// separator. With autobuild, each asset is brought up to date first.
func (r *Registry) Cat(ctx context.Context, separator string, tags ...string) (string, error) {
	vpaths, err := r.Tagged(tags...)
	if err != nil {
		return "", err
	}
	assets, err := r.lookupAll(vpaths)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, asset := range assets {
		if r.autobuild {
			if err := r.EnsureUpToDate(ctx, asset.VirtualPath); err != nil {
				return "", err
			}
		}
		data, err := os.ReadFile(asset.Path)
		if err != nil {
			return "", zerr.With(zerr.Wrap(domain.ErrAssetNotFound, err.Error()), "asset", asset.VirtualPath)
		}
		if i > 0 {
			b.WriteString(separator)
		}
		b.Write(data)
	}
	return b.String(), nil
}

// Inline is Cat with the default newline separator.
func (r *Registry) Inline(ctx context.Context, tags ...string) (string, error) {
	return r.Cat(ctx, domain.DefaultSeparator, tags...)
}
