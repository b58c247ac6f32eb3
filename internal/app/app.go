// Package app implements the application layer for assetbuilder.
package app

import (
	"context"
	"os"
	"reflect"

	"go.trai.ch/assetbuilder/internal/adapters/lock"
	"go.trai.ch/assetbuilder/internal/adapters/signer"
	"go.trai.ch/assetbuilder/internal/adapters/telemetry"
	"go.trai.ch/assetbuilder/internal/adapters/watcher"
	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/assetbuilder/internal/engine/registry"
	"go.trai.ch/assetbuilder/internal/engine/urls"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	runner       ports.Runner
	resolver     ports.DependencyResolver
	hasher       ports.Hasher
	store        ports.ManifestStore
	tracer       ports.Tracer
	newWatcher   watcher.Factory
	workDir      string
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	runner ports.Runner,
	resolver ports.DependencyResolver,
	hasher ports.Hasher,
	store ports.ManifestStore,
	tracer ports.Tracer,
	newWatcher watcher.Factory,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		runner:       runner,
		resolver:     resolver,
		hasher:       hasher,
		store:        store,
		tracer:       tracer,
		newWatcher:   newWatcher,
	}
}

// WithWorkDir sets the directory the configuration is discovered from and
// build commands run in. It defaults to the process working directory.
func (a *App) WithWorkDir(dir string) *App {
	a.workDir = dir
	return a
}

// Options are shared by every command.
type Options struct {
	// ConfigPath is the asset configuration file. Empty means discovery.
	ConfigPath string
	// Autobuild overrides the configured autobuild setting when set.
	Autobuild *bool
}

// workspace is the registry built from one loaded configuration.
type workspace struct {
	settings *domain.Settings
	registry *registry.Registry
	signer   *signer.Signer
	urls     *urls.Generator
}

func (a *App) open(opts Options) (*workspace, error) {
	workDir := a.workDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to get working directory")
		}
		workDir = wd
	}

	settings, err := a.configLoader.Load(workDir, opts.ConfigPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	if opts.Autobuild != nil {
		settings.Autobuild = *opts.Autobuild
	}

	locker := lock.NewFileLocker(settings.LockPath, settings.LockTimeout)
	reg := registry.New(
		a.runner,
		a.resolver,
		a.hasher,
		locker,
		a.tracer,
		a.logger,
		registry.OptionsFromSettings(settings, workDir),
	)
	if err := reg.Load(settings); err != nil {
		return nil, zerr.Wrap(err, "failed to register assets")
	}

	s := signer.New(settings.Secret, a.logger)
	return &workspace{
		settings: settings,
		registry: reg,
		signer:   s,
		urls:     urls.New(reg, s, settings.BaseURL),
	}, nil
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	Options
	// Clean removes every asset output before rebuilding.
	Clean bool
	// Manifest writes the URLs of every tag to the manifest store.
	Manifest bool
}

// Build rebuilds every asset once and optionally writes the URL manifest.
func (a *App) Build(ctx context.Context, opts BuildOptions) error {
	tp := telemetry.Setup(a.logger)
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	ws, err := a.open(opts.Options)
	if err != nil {
		return err
	}

	if err := ws.registry.RebuildAll(ctx, opts.Clean); err != nil {
		return zerr.Wrap(err, "rebuild failed")
	}

	for _, asset := range ws.registry.Assets() {
		if state, _ := ws.registry.State(asset.VirtualPath); state == domain.StateUnbuildable {
			a.logger.Warn("asset could not be built", "asset", asset.VirtualPath)
		}
	}

	if !opts.Manifest {
		return nil
	}
	return a.writeManifest(ctx, ws)
}

func (a *App) writeManifest(ctx context.Context, ws *workspace) error {
	manifest, err := ws.urls.Manifest(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to generate manifest")
	}

	root := ws.settings.Root
	path := domain.DefaultManifestPath(root)
	previous, err := a.store.Get(root)
	if err != nil {
		a.logger.Warn("ignoring unreadable manifest", "path", path, "error", err.Error())
	}
	if previous != nil && reflect.DeepEqual(*previous, manifest) {
		a.logger.Info("manifest up to date", "path", path)
		return nil
	}

	if err := a.store.Put(root, manifest); err != nil {
		return err
	}
	a.logger.Info("wrote manifest", "path", path, "tags", len(manifest.URLs))
	return nil
}

// URLOptions configuration for the URLs method.
type URLOptions struct {
	Options
	Tags []string
	// Group returns one URL serving every tagged asset concatenated.
	Group bool
	// Separator joins the files of a group.
	Separator string
}

// URLs returns the cache-busted URLs of the assets carrying any of the tags.
func (a *App) URLs(ctx context.Context, opts URLOptions) ([]string, error) {
	ws, err := a.open(opts.Options)
	if err != nil {
		return nil, err
	}

	if opts.Group {
		u, err := ws.urls.Group(ctx, opts.Separator, opts.Tags...)
		if err != nil {
			return nil, err
		}
		return []string{u}, nil
	}
	return ws.urls.URLs(ctx, opts.Tags...)
}

// CatOptions configuration for the Cat method.
type CatOptions struct {
	Options
	Tags      []string
	Separator string
}

// Cat returns the concatenated content of the assets carrying any of the tags.
func (a *App) Cat(ctx context.Context, opts CatOptions) (string, error) {
	ws, err := a.open(opts.Options)
	if err != nil {
		return "", err
	}
	return ws.registry.Cat(ctx, opts.Separator, opts.Tags...)
}
