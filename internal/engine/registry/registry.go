// Package registry owns the per-process asset state: registered assets,
// their memoized dependencies, negative dependencies, unbuildable marks and
// cache-busters.
package registry

import (
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// Options configures a Registry.
type Options struct {
	// Directory holds the asset outputs; virtual paths are relative to it.
	Directory string
	// DepDirs are searched for dependency globs. Defaults to Directory.
	DepDirs []string
	// Autobuild brings assets up to date before tokens are computed.
	Autobuild bool
	// WorkDir is the default build working directory and the base of the
	// {path} template variable. Defaults to the process working directory.
	WorkDir string
}

// OptionsFromSettings derives registry options from loaded settings.
func OptionsFromSettings(s *domain.Settings, workDir string) Options {
	return Options{
		Directory: s.Directory,
		DepDirs:   s.DepDirs,
		Autobuild: s.Autobuild,
		WorkDir:   workDir,
	}
}

// Registry tracks registered assets and keeps them up to date.
type Registry struct {
	runner   ports.Runner
	resolver ports.DependencyResolver
	hasher   ports.Hasher
	locker   ports.Locker
	tracer   ports.Tracer
	logger   ports.Logger

	directory string
	depDirs   []string
	autobuild bool
	workDir   string

	mu                sync.RWMutex
	assets            map[string]*domain.Asset
	order             []string
	tags              map[string][]string
	globalDeps        []string
	defaultCommand    *domain.BuildCommand
	rebuildAllCommand *domain.BuildCommand
	depsCache         map[string][]string
	negativeDeps      map[string]map[string]struct{}
	unbuildable       map[string]struct{}
	cacheBusters      map[domain.CacheBusterKey]domain.CacheBuster

	builds singleflight.Group
}

// New creates an empty Registry.
func New(
	runner ports.Runner,
	resolver ports.DependencyResolver,
	hasher ports.Hasher,
	locker ports.Locker,
	tracer ports.Tracer,
	logger ports.Logger,
	opts Options,
) *Registry {
	directory := filepath.Clean(opts.Directory)
	if abs, err := filepath.Abs(directory); err == nil {
		directory = abs
	}

	depDirs := slices.Clone(opts.DepDirs)
	if len(depDirs) == 0 {
		depDirs = []string{directory}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	return &Registry{
		runner:       runner,
		resolver:     resolver,
		hasher:       hasher,
		locker:       locker,
		tracer:       tracer,
		logger:       logger,
		directory:    directory,
		depDirs:      depDirs,
		autobuild:    opts.Autobuild,
		workDir:      workDir,
		assets:       make(map[string]*domain.Asset),
		tags:         make(map[string][]string),
		depsCache:    make(map[string][]string),
		negativeDeps: make(map[string]map[string]struct{}),
		unbuildable:  make(map[string]struct{}),
		cacheBusters: make(map[domain.CacheBusterKey]domain.CacheBuster),
	}
}

// Load registers the global dependencies, commands and assets of settings.
func (r *Registry) Load(settings *domain.Settings) error {
	r.AddGlobalDep(settings.GlobalDeps...)
	r.SetDefaultBuildCommand(settings.DefaultCommand)
	r.SetRebuildAllCommand(settings.RebuildAllCommand)

	for _, spec := range settings.Assets {
		if err := r.AddPaths(spec.Tags, spec.Paths, spec.Deps, spec.Command); err != nil {
			return err
		}
	}
	return nil
}

// Directory returns the absolute asset directory.
func (r *Registry) Directory() string {
	return r.directory
}

// DepDirs returns the directories searched for dependencies.
func (r *Registry) DepDirs() []string {
	return slices.Clone(r.depDirs)
}

// Autobuild reports whether assets are built on demand.
func (r *Registry) Autobuild() bool {
	return r.autobuild
}

// SetDefaultBuildCommand sets the command used by assets registered without one.
// It applies to assets registered afterwards.
func (r *Registry) SetDefaultBuildCommand(cmd *domain.BuildCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultCommand = cmd
}

// SetRebuildAllCommand sets a command that rebuilds every asset in one go.
func (r *Registry) SetRebuildAllCommand(cmd *domain.BuildCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildAllCommand = cmd
}

// AddGlobalDep adds dependency globs checked for every asset.
func (r *Registry) AddGlobalDep(globs ...string) {
	if len(globs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globalDeps = append(r.globalDeps, globs...)
	clear(r.depsCache)
}

// AddPaths registers every virtual path in vpaths with the same tags,
// dependencies and command.
func (r *Registry) AddPaths(tags, vpaths, deps []string, cmd *domain.BuildCommand) error {
	for _, vpath := range vpaths {
		if err := r.AddPath(tags, vpath, deps, cmd); err != nil {
			return err
		}
	}
	return nil
}

// AddPath registers an asset. A nil cmd falls back to the default build
// command. The {abspath}, {path} and {dir} placeholders of the command are
// substituted here, once.
func (r *Registry) AddPath(tags []string, vpath string, deps []string, cmd *domain.BuildCommand) error {
	vpath, err := cleanVirtualPath(vpath)
	if err != nil {
		return err
	}
	outputPath := filepath.Join(r.directory, filepath.FromSlash(vpath))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[vpath]; exists {
		return zerr.With(zerr.Wrap(domain.ErrAssetAlreadyRegistered, ""), "asset", vpath)
	}
	if cmd == nil {
		cmd = r.defaultCommand
	}

	asset := &domain.Asset{
		VirtualPath: vpath,
		Path:        outputPath,
		Tags:        slices.Clone(tags),
		Deps:        slices.Clone(deps),
		Command:     cmd.Expand(r.templateVars(outputPath)),
	}

	r.assets[vpath] = asset
	r.order = append(r.order, vpath)
	for _, tag := range tags {
		r.tags[tag] = append(r.tags[tag], vpath)
	}
	return nil
}

func (r *Registry) templateVars(outputPath string) map[string]string {
	rel, err := filepath.Rel(r.workDir, outputPath)
	if err != nil || !filepath.IsLocal(rel) {
		rel = outputPath
	}
	return map[string]string{
		domain.VarAbsPath: outputPath,
		domain.VarPath:    rel,
		domain.VarDir:     filepath.Dir(outputPath),
	}
}

// cleanVirtualPath strips leading slashes and rejects paths that escape the
// asset directory.
func cleanVirtualPath(vpath string) (string, error) {
	cleaned := path.Clean(strings.TrimLeft(vpath, "/"))
	if cleaned == "." || !filepath.IsLocal(filepath.FromSlash(cleaned)) {
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidVirtualPath, ""), "asset", vpath)
	}
	return cleaned, nil
}

// Lookup returns the asset registered under vpath.
func (r *Registry) Lookup(vpath string) (*domain.Asset, bool) {
	vpath, err := cleanVirtualPath(vpath)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[vpath]
	return asset, ok
}

// Assets returns every registered asset in registration order.
func (r *Registry) Assets() []*domain.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Asset, 0, len(r.order))
	for _, vpath := range r.order {
		out = append(out, r.assets[vpath])
	}
	return out
}

// Tags returns every known tag, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.tags))
	for tag := range r.tags {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// Tagged returns the virtual paths carrying any of tags, in tag order and
// then registration order, without duplicates.
func (r *Registry) Tagged(tags ...string) ([]string, error) {
	if len(tags) == 0 {
		return nil, domain.ErrNoTagsSpecified
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var vpaths []string
	seen := make(map[string]struct{})
	for _, tag := range tags {
		members, ok := r.tags[tag]
		if !ok {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownTag, ""), "tag", tag)
		}
		for _, vpath := range members {
			if _, dup := seen[vpath]; dup {
				continue
			}
			seen[vpath] = struct{}{}
			vpaths = append(vpaths, vpath)
		}
	}
	return vpaths, nil
}

func (r *Registry) lookupAll(vpaths []string) ([]*domain.Asset, error) {
	assets := make([]*domain.Asset, 0, len(vpaths))
	for _, vpath := range vpaths {
		asset, ok := r.Lookup(vpath)
		if !ok {
			return nil, zerr.With(zerr.Wrap(domain.ErrAssetNotFound, ""), "asset", vpath)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}
