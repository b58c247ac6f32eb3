package config

// Assetfile represents the structure of the assetbuilder.yaml configuration file.
type Assetfile struct {
	Version           string      `yaml:"version"`
	BaseURL           string      `yaml:"baseurl"`
	Directory         string      `yaml:"directory"`
	DepDirs           []string    `yaml:"depdirs"`
	Autobuild         bool        `yaml:"autobuild"`
	Watch             bool        `yaml:"watch"`
	Secret            string      `yaml:"secret"`
	Lock              LockDTO     `yaml:"lock"`
	GlobalDeps        []string    `yaml:"globalDeps"`
	DefaultCommand    *CommandDTO `yaml:"defaultCommand"`
	RebuildAllCommand *CommandDTO `yaml:"rebuildAllCommand"`
	Assets            []AssetDTO  `yaml:"assets"`
}

// LockDTO configures the cross-process build lock.
type LockDTO struct {
	Path    string `yaml:"path"`
	Timeout string `yaml:"timeout"`
}

// AssetDTO registers one or more virtual paths.
type AssetDTO struct {
	Paths   []string    `yaml:"paths"`
	Tags    []string    `yaml:"tags"`
	Deps    []string    `yaml:"deps"`
	Command *CommandDTO `yaml:"command"`
}

// CommandDTO is a build command. Exactly one of Run (a shell string) or
// Cmd (an argv) must be set.
type CommandDTO struct {
	Run   string            `yaml:"run"`
	Cmd   []string          `yaml:"cmd"`
	Chdir bool              `yaml:"chdir"`
	Cwd   string            `yaml:"cwd"`
	Env   map[string]string `yaml:"env"`
}
