// Package config provides the configuration loader for assetbuilder.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// supportedVersion is the Assetfile schema version understood by the loader.
const supportedVersion = "1"

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

var _ ports.ConfigLoader = (*Loader)(nil)

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the Assetfile at path, or discovers it from cwd upwards when
// path is empty, and resolves it into domain.Settings.
func (l *Loader) Load(cwd, path string) (*domain.Settings, error) {
	cwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve working directory")
	}

	configPath := path
	if configPath == "" {
		configPath, err = findConfiguration(cwd)
		if err != nil {
			return nil, err
		}
	} else if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(cwd, configPath)
	}

	var file Assetfile
	if err := readAndUnmarshalYAML(configPath, &file); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	if file.Version != "" && file.Version != supportedVersion {
		l.Logger.Warn(fmt.Sprintf("unsupported version %q in %s, reading as version %s",
			file.Version, domain.ConfigFileName, supportedVersion))
	}

	return resolveSettings(cwd, filepath.Dir(configPath), &file)
}

func findConfiguration(cwd string) (string, error) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(zerr.Wrap(domain.ErrConfigNotFound, ""), "cwd", cwd)
}

//nolint:cyclop // flat field-by-field resolution
func resolveSettings(cwd, root string, file *Assetfile) (*domain.Settings, error) {
	root = filepath.Clean(root)
	settings := &domain.Settings{
		Root:        root,
		BaseURL:     normalizeBaseURL(file.BaseURL),
		Directory:   resolvePath(root, file.Directory),
		Autobuild:   file.Autobuild,
		Watch:       file.Watch,
		Secret:      []byte(file.Secret),
		LockPath:    filepath.Join(cwd, domain.LockFileName),
		LockTimeout: domain.DefaultLockTimeout,
		GlobalDeps:  slices.Clone(file.GlobalDeps),
	}

	if len(file.Secret) == 0 {
		settings.Secret = nil
	}

	for _, dir := range file.DepDirs {
		settings.DepDirs = append(settings.DepDirs, resolvePath(root, dir))
	}
	if len(settings.DepDirs) == 0 {
		settings.DepDirs = []string{settings.Directory}
	}

	if file.Lock.Path != "" {
		settings.LockPath = resolvePath(root, file.Lock.Path)
	}
	if file.Lock.Timeout != "" {
		timeout, err := time.ParseDuration(file.Lock.Timeout)
		if err != nil || timeout <= 0 {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidLockTimeout, ""), "timeout", file.Lock.Timeout)
		}
		settings.LockTimeout = timeout
	}

	var err error
	if settings.DefaultCommand, err = buildCommand(root, file.DefaultCommand); err != nil {
		return nil, zerr.With(err, "field", "defaultCommand")
	}
	if settings.RebuildAllCommand, err = buildCommand(root, file.RebuildAllCommand); err != nil {
		return nil, zerr.With(err, "field", "rebuildAllCommand")
	}

	for i, dto := range file.Assets {
		if len(dto.Paths) == 0 {
			return nil, zerr.With(zerr.Wrap(domain.ErrMissingAssetPaths, ""), "asset_index", i)
		}
		cmd, err := buildCommand(root, dto.Command)
		if err != nil {
			return nil, zerr.With(zerr.With(err, "asset_index", i), "paths", strings.Join(dto.Paths, ","))
		}
		settings.Assets = append(settings.Assets, domain.AssetSpec{
			Paths:   slices.Clone(dto.Paths),
			Tags:    slices.Clone(dto.Tags),
			Deps:    slices.Clone(dto.Deps),
			Command: cmd,
		})
	}

	return settings, nil
}

func buildCommand(root string, dto *CommandDTO) (*domain.BuildCommand, error) {
	if dto == nil {
		return nil, nil
	}

	hasRun := strings.TrimSpace(dto.Run) != ""
	hasCmd := len(dto.Cmd) > 0
	if hasRun == hasCmd {
		return nil, zerr.Wrap(domain.ErrInvalidCommand, "")
	}

	var cmd *domain.BuildCommand
	if hasRun {
		cmd = domain.NewShellCommand(dto.Run)
	} else {
		cmd = domain.NewArgvCommand(dto.Cmd...)
	}

	cmd.Chdir = dto.Chdir
	if dto.Cwd != "" {
		cmd.Cwd = resolvePath(root, dto.Cwd)
	}
	if len(dto.Env) > 0 {
		cmd.Env = maps.Clone(dto.Env)
	}
	return cmd, nil
}

// resolvePath resolves p against root unless it is already absolute.
func resolvePath(root, p string) string {
	if p == "" {
		return root
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(root, p))
}

// normalizeBaseURL makes sure the base URL ends with a slash.
func normalizeBaseURL(base string) string {
	if base == "" {
		return domain.DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is discovered or provided by the user
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(domain.ErrConfigReadFailed, err.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.Wrap(domain.ErrConfigParseFailed, parseErr.Error())
	}

	return nil
}
