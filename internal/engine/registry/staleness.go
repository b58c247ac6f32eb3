package registry

import (
	"context"
	"os"
	"slices"
	"time"

	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/zerr"
)

// State reports the staleness state of the asset at vpath.
func (r *Registry) State(vpath string) (domain.AssetState, error) {
	asset, ok := r.Lookup(vpath)
	if !ok {
		return domain.StateUnbuilt, zerr.With(zerr.Wrap(domain.ErrAssetNotFound, ""), "asset", vpath)
	}
	return r.state(asset), nil
}

func (r *Registry) state(asset *domain.Asset) domain.AssetState {
	if r.isUnbuildable(asset.VirtualPath) {
		return domain.StateUnbuildable
	}
	info, err := os.Stat(asset.Path)
	if err != nil {
		return domain.StateUnbuilt
	}
	if len(r.staleDependencies(asset, info.ModTime())) > 0 {
		return domain.StateStale
	}
	return domain.StateFresh
}

// EnsureUpToDate builds the asset at vpath when its output is missing or
// older than a tracked dependency. Build failures and lock errors are
// logged, not returned; the only error is an unknown asset.
func (r *Registry) EnsureUpToDate(ctx context.Context, vpath string) error {
	asset, ok := r.Lookup(vpath)
	if !ok {
		return zerr.With(zerr.Wrap(domain.ErrAssetNotFound, ""), "asset", vpath)
	}

	switch r.state(asset) {
	case domain.StateFresh, domain.StateUnbuildable:
		return nil
	default:
	}

	// Concurrent callers for the same asset share one build.
	_, err, _ := r.builds.Do(asset.VirtualPath, func() (any, error) {
		unlock, err := r.locker.Lock(ctx)
		if err != nil {
			return nil, err
		}
		defer r.release(unlock)

		r.refresh(ctx, asset)
		return nil, nil
	})
	if err != nil {
		r.logger.Error(zerr.With(zerr.Wrap(err, "build skipped"), "asset", asset.VirtualPath))
	}
	return nil
}

// RebuildAll clears the unbuildable marks and the dependency memo, then
// rebuilds every asset under a single hold of the build lock. With clean
// set, every output is removed first.
func (r *Registry) RebuildAll(ctx context.Context, clean bool) error {
	ctx, span := r.tracer.Start(ctx, "rebuild-all", ports.WithAttribute("clean", clean))
	defer span.End()

	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer r.release(unlock)

	r.mu.Lock()
	clear(r.unbuildable)
	clear(r.depsCache)
	cmd := r.rebuildAllCommand
	r.mu.Unlock()

	assets := r.Assets()
	span.SetAttribute("files", len(assets))

	if clean {
		for _, asset := range assets {
			r.logger.Info("removing asset output", "path", asset.Path)
			_ = os.Remove(asset.Path)
		}
	}

	if cmd != nil {
		if !r.run(ctx, span, cmd, r.workingDir(cmd, "")) {
			return zerr.With(zerr.Wrap(domain.ErrRebuildAllFailed, ""), "command", cmd.String())
		}
		for _, asset := range assets {
			r.updateCacheBuster(asset)
		}
		return nil
	}

	for _, asset := range assets {
		r.refresh(ctx, asset)
	}
	return nil
}

func (r *Registry) release(unlock func() error) {
	if err := unlock(); err != nil {
		r.logger.Error(err)
	}
}

// refresh runs the staleness state machine for one asset. Callers hold the
// build lock.
func (r *Registry) refresh(ctx context.Context, asset *domain.Asset) {
	vpath := asset.VirtualPath
	if r.isUnbuildable(vpath) {
		return
	}

	info, err := os.Stat(asset.Path)
	if err != nil {
		r.build(ctx, asset)
		if !exists(asset.Path) {
			r.logger.Warn("build produced no output, asset marked unbuildable",
				"asset", vpath, "command", asset.Command.String())
			r.markUnbuildable(vpath)
		}
		r.updateCacheBuster(asset)
		return
	}

	before := info.ModTime()
	changed := r.staleDependencies(asset, before)
	if len(changed) == 0 {
		r.logger.Debug("asset has no updated dependencies", "asset", vpath)
		return
	}

	r.logger.Info("rebuilding asset", "asset", vpath, "changed", changed)
	ok := r.build(ctx, asset)

	after, err := os.Stat(asset.Path)
	if err != nil {
		r.logger.Warn("rebuild removed the output, asset marked unbuildable", "asset", vpath)
		r.markUnbuildable(vpath)
		r.updateCacheBuster(asset)
		return
	}

	if ok && after.ModTime().Equal(before) {
		r.logger.Info("output not updated after rebuilding, ignoring dependencies",
			"asset", vpath, "deps", changed)
		r.addNegativeDependencies(vpath, changed)
	}
	r.updateCacheBuster(asset)
}

// build runs the asset's command and reports whether it exited zero.
func (r *Registry) build(ctx context.Context, asset *domain.Asset) bool {
	if asset.Command == nil {
		r.logger.Warn("no build command configured", "asset", asset.VirtualPath)
		return false
	}

	ctx, span := r.tracer.Start(ctx, "build "+asset.VirtualPath, ports.WithAttribute("asset", asset.VirtualPath))
	defer span.End()

	return r.run(ctx, span, asset.Command, r.workingDir(asset.Command, asset.Dir()))
}

// run executes cmd detached from ctx cancellation so a disconnected client
// does not leave a half-written output behind.
func (r *Registry) run(ctx context.Context, span ports.Span, cmd *domain.BuildCommand, dir string) bool {
	r.logger.Debug("running build command", "command", cmd.String(), "cwd", dir)

	code, err := r.runner.Run(context.WithoutCancel(ctx), cmd, dir)
	span.SetAttribute("exit_code", code)
	if err != nil {
		err = zerr.With(err, "cwd", dir)
		span.RecordError(err)
		r.logger.Error(err)
		return false
	}
	if code != 0 {
		err := zerr.With(zerr.Wrap(domain.ErrBuildFailed, ""), "command", cmd.String())
		err = zerr.With(err, "exit_code", code)
		err = zerr.With(err, "cwd", dir)
		err = zerr.With(err, "env", cmd.Env)
		span.RecordError(err)
		r.logger.Error(err)
		return false
	}
	return true
}

// workingDir picks the asset directory when the command asks for it, then
// the explicit cwd, then the registry working directory.
func (r *Registry) workingDir(cmd *domain.BuildCommand, assetDir string) string {
	switch {
	case cmd.Chdir && assetDir != "":
		return assetDir
	case cmd.Cwd != "":
		return cmd.Cwd
	default:
		return r.workDir
	}
}

// staleDependencies returns the tracked dependencies newer than mtime.
// Missing dependency files are skipped.
func (r *Registry) staleDependencies(asset *domain.Asset, mtime time.Time) []string {
	deps := r.dependencies(asset)

	r.mu.RLock()
	negative := r.negativeDeps[asset.VirtualPath]
	candidates := make([]string, 0, len(deps))
	for _, dep := range deps {
		if _, skip := negative[dep]; !skip {
			candidates = append(candidates, dep)
		}
	}
	r.mu.RUnlock()

	var changed []string
	for _, dep := range candidates {
		info, err := os.Stat(dep)
		if err != nil {
			continue
		}
		if info.ModTime().After(mtime) {
			changed = append(changed, dep)
		}
	}
	return changed
}

// dependencies resolves and memoizes the dependency files of asset.
func (r *Registry) dependencies(asset *domain.Asset) []string {
	r.mu.RLock()
	deps, ok := r.depsCache[asset.VirtualPath]
	globs := append(append([]string(nil), r.globalDeps...), asset.Deps...)
	r.mu.RUnlock()
	if ok {
		return deps
	}

	deps, err := r.resolver.Resolve(r.depDirs, globs)
	if err != nil {
		r.logger.Error(zerr.With(err, "asset", asset.VirtualPath))
		return nil
	}

	r.mu.Lock()
	r.depsCache[asset.VirtualPath] = deps
	r.mu.Unlock()
	return deps
}

// InvalidateDependencies drops the memoized dependency sets so the globs
// are expanded again on the next check. Negative dependencies are kept.
func (r *Registry) InvalidateDependencies() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.depsCache)
}

// NegativeDependencies returns the dependencies of vpath that no longer
// trigger rebuilds.
func (r *Registry) NegativeDependencies(vpath string) []string {
	vpath, err := cleanVirtualPath(vpath)
	if err != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.negativeDeps[vpath]))
	for dep := range r.negativeDeps[vpath] {
		out = append(out, dep)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) addNegativeDependencies(vpath string, deps []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.negativeDeps[vpath]
	if !ok {
		set = make(map[string]struct{}, len(deps))
		r.negativeDeps[vpath] = set
	}
	for _, dep := range deps {
		set[dep] = struct{}{}
	}
}

func (r *Registry) isUnbuildable(vpath string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.unbuildable[vpath]
	return ok
}

func (r *Registry) markUnbuildable(vpath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unbuildable[vpath] = struct{}{}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
