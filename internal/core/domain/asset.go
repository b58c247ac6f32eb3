package domain

import (
	"path/filepath"
	"slices"
)

// Asset is a servable file, optionally produced by a build command.
type Asset struct {
	// VirtualPath is the URL-facing identifier, relative and slash separated.
	VirtualPath string
	// Path is the absolute filesystem path of the built output.
	Path string
	// Tags group related assets for URL generation.
	Tags []string
	// Deps are dependency glob specs. A leading "!" excludes matches.
	Deps []string
	// Command builds Path. Nil means the asset cannot be built.
	Command *BuildCommand
}

// Dir returns the directory containing the asset output.
func (a *Asset) Dir() string {
	return filepath.Dir(a.Path)
}

// HasTag reports whether the asset carries the given tag.
func (a *Asset) HasTag(tag string) bool {
	return slices.Contains(a.Tags, tag)
}

// AssetGroup is an ordered list of virtual paths served as one response.
type AssetGroup struct {
	Paths     []string `json:"p"`
	Separator string   `json:"s"`
}
