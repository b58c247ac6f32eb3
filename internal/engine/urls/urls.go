// Package urls generates cache-busted URLs for registered assets.
package urls

import (
	"context"
	"strings"
	"sync"

	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
)

// Assets is the part of the asset registry the generator reads.
type Assets interface {
	Tags() []string
	Tagged(tags ...string) ([]string, error)
	Token(ctx context.Context, vpaths ...string) (string, error)
	Autobuild() bool
}

// Generator builds asset and group URLs under a base URL.
type Generator struct {
	assets  Assets
	signer  ports.Signer
	baseURL string

	mu     sync.Mutex
	groups map[string]string
}

// New creates a Generator. baseURL is expected to end with a slash.
func New(assets Assets, signer ports.Signer, baseURL string) *Generator {
	if baseURL == "" {
		baseURL = domain.DefaultBaseURL
	}
	return &Generator{
		assets:  assets,
		signer:  signer,
		baseURL: baseURL,
		groups:  make(map[string]string),
	}
}

// BaseURL returns the prefix of every generated URL.
func (g *Generator) BaseURL() string {
	return g.baseURL
}

// For returns the URL of a single asset: base URL, virtual path and token.
func (g *Generator) For(ctx context.Context, vpath string) (string, error) {
	token, err := g.assets.Token(ctx, vpath)
	if err != nil {
		return "", err
	}
	return g.baseURL + vpath + "?" + token, nil
}

// URLs returns one URL per asset carrying any of tags.
func (g *Generator) URLs(ctx context.Context, tags ...string) ([]string, error) {
	vpaths, err := g.assets.Tagged(tags...)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(vpaths))
	for _, vpath := range vpaths {
		u, err := g.For(ctx, vpath)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// URL is Group with the default newline separator.
func (g *Generator) URL(ctx context.Context, tags ...string) (string, error) {
	return g.Group(ctx, domain.DefaultSeparator, tags...)
}

// Group returns a single URL serving every asset carrying any of tags,
// concatenated with separator. A group of one asset is its plain URL.
// Without autobuild, group URLs are computed once per tags and separator.
func (g *Generator) Group(ctx context.Context, separator string, tags ...string) (string, error) {
	key := strings.Join(tags, "\x00") + "\x01" + separator
	cached := !g.assets.Autobuild()
	if cached {
		g.mu.Lock()
		u, ok := g.groups[key]
		g.mu.Unlock()
		if ok {
			return u, nil
		}
	}

	vpaths, err := g.assets.Tagged(tags...)
	if err != nil {
		return "", err
	}
	if len(vpaths) == 1 {
		return g.For(ctx, vpaths[0])
	}

	signed, err := g.signer.Sign(domain.AssetGroup{Paths: vpaths, Separator: separator})
	if err != nil {
		return "", err
	}
	token, err := g.assets.Token(ctx, vpaths...)
	if err != nil {
		return "", err
	}

	u := g.baseURL + domain.GroupPrefix + signed + "/" + token
	if cached {
		g.mu.Lock()
		g.groups[key] = u
		g.mu.Unlock()
	}
	return u, nil
}

// Manifest returns the asset URLs and the group URL of every known tag.
func (g *Generator) Manifest(ctx context.Context) (domain.Manifest, error) {
	m := domain.Manifest{
		BaseURL: g.baseURL,
		URLs:    make(map[string][]string),
		Groups:  make(map[string]string),
	}
	for _, tag := range g.assets.Tags() {
		urls, err := g.URLs(ctx, tag)
		if err != nil {
			return domain.Manifest{}, err
		}
		group, err := g.URL(ctx, tag)
		if err != nil {
			return domain.Manifest{}, err
		}
		m.URLs[tag] = urls
		m.Groups[tag] = group
	}
	return m, nil
}
