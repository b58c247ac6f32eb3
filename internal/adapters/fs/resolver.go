// Package fs provides filesystem adapters: dependency glob resolution and
// cache-buster hashing.
package fs

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/zerr"
)

// excludePrefix marks a dependency glob whose matches are subtracted.
const excludePrefix = "!"

var _ ports.DependencyResolver = (*Resolver)(nil)

// Resolver implements ports.DependencyResolver using doublestar globs.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve expands every glob against every directory and subtracts the
// matches of "!"-prefixed globs. Absolute globs ignore dirs. Only regular
// files are returned, sorted and deduplicated.
func (r *Resolver) Resolve(dirs, globs []string) ([]string, error) {
	var include, exclude []string
	for _, g := range globs {
		if pattern, ok := strings.CutPrefix(g, excludePrefix); ok {
			exclude = append(exclude, pattern)
			continue
		}
		include = append(include, g)
	}

	included, err := expand(dirs, include)
	if err != nil {
		return nil, err
	}
	excluded, err := expand(dirs, exclude)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(included))
	for path := range included {
		if _, skip := excluded[path]; !skip {
			result = append(result, path)
		}
	}
	slices.Sort(result)

	return result, nil
}

func expand(dirs, patterns []string) (map[string]struct{}, error) {
	matches := make(map[string]struct{})

	for _, pattern := range patterns {
		if filepath.IsAbs(pattern) {
			if err := globInto(matches, pattern); err != nil {
				return nil, err
			}
			continue
		}
		for _, dir := range dirs {
			if err := globInto(matches, filepath.Join(dir, pattern)); err != nil {
				return nil, err
			}
		}
	}

	return matches, nil
}

func globInto(matches map[string]struct{}, pattern string) error {
	found, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to glob path"), "pattern", pattern)
	}

	for _, match := range found {
		abs, err := filepath.Abs(match)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", match)
		}
		if info, err := os.Stat(abs); err != nil || !info.Mode().IsRegular() {
			continue
		}
		matches[abs] = struct{}{}
	}

	return nil
}
