package domain

import (
	"maps"
	"slices"
	"strings"
)

// Template variables substituted into build commands at registration time.
const (
	VarAbsPath = "abspath"
	VarPath    = "path"
	VarDir     = "dir"
)

// BuildCommand describes how an asset is built. It is immutable once
// registered: templating happens in Expand, never at build time.
type BuildCommand struct {
	// Command is a single shell string when Shell is set, otherwise an argv.
	Command []string
	// Shell runs Command[0] through /bin/sh -c.
	Shell bool
	// Chdir runs the command in the asset's directory.
	Chdir bool
	// Cwd is the working directory when Chdir is not set. Empty means the
	// process working directory.
	Cwd string
	// Env overlays the process environment.
	Env map[string]string
}

// NewShellCommand returns a command run through the shell.
func NewShellCommand(script string) *BuildCommand {
	return &BuildCommand{Command: []string{script}, Shell: true}
}

// NewArgvCommand returns a command executed directly.
func NewArgvCommand(argv ...string) *BuildCommand {
	return &BuildCommand{Command: slices.Clone(argv)}
}

// Expand returns a copy with every {name} placeholder in the command
// replaced by vars[name]. "{{" and "}}" produce literal braces.
func (c *BuildCommand) Expand(vars map[string]string) *BuildCommand {
	if c == nil {
		return nil
	}

	pairs := []string{"{{", "{", "}}", "}"}
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	r := strings.NewReplacer(pairs...)

	out := &BuildCommand{
		Command: make([]string, len(c.Command)),
		Shell:   c.Shell,
		Chdir:   c.Chdir,
		Cwd:     c.Cwd,
		Env:     maps.Clone(c.Env),
	}
	for i, arg := range c.Command {
		out.Command[i] = r.Replace(arg)
	}
	return out
}

// String renders the command for logs.
func (c *BuildCommand) String() string {
	if c == nil {
		return ""
	}
	return strings.Join(c.Command, " ")
}
