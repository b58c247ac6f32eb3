package domain

import "time"

// Settings is the resolved asset configuration.
type Settings struct {
	// Root is the directory containing the config file.
	Root              string
	BaseURL           string
	Directory         string
	DepDirs           []string
	Autobuild         bool
	Watch             bool
	Secret            []byte
	LockPath          string
	LockTimeout       time.Duration
	GlobalDeps        []string
	DefaultCommand    *BuildCommand
	RebuildAllCommand *BuildCommand
	Assets            []AssetSpec
}

// AssetSpec registers one or more virtual paths sharing tags, deps and command.
type AssetSpec struct {
	Paths   []string
	Tags    []string
	Deps    []string
	Command *BuildCommand
}
