// Package shell provides a process-based runner for asset build commands.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/zerr"
)

// shellPath interprets commands registered with Shell set.
const shellPath = "/bin/sh"

var _ ports.Runner = (*Runner)(nil)

// Runner implements ports.Runner using os/exec.
type Runner struct {
	logger ports.Logger
}

// NewRunner creates a new Runner that forwards command output to logger.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{
		logger: logger,
	}
}

// Run executes cmd in dir and waits for it to exit. Stdout lines are logged
// at info level and stderr lines at warn level.
func (r *Runner) Run(ctx context.Context, cmd *domain.BuildCommand, dir string) (int, error) {
	if cmd == nil || len(cmd.Command) == 0 {
		return -1, domain.ErrEmptyCommand
	}

	env := resolveEnvironment(os.Environ(), cmd.Env)

	var c *exec.Cmd
	if cmd.Shell {
		//nolint:gosec // build commands come from the asset configuration
		c = exec.CommandContext(ctx, shellPath, "-c", strings.Join(cmd.Command, " "))
	} else {
		name := cmd.Command[0]
		executable := name
		if !filepath.IsAbs(name) && !strings.Contains(name, string(filepath.Separator)) {
			if lp, err := lookPath(name, env); err == nil {
				executable = lp
			}
		}
		//nolint:gosec // build commands come from the asset configuration
		c = exec.CommandContext(ctx, executable, cmd.Command[1:]...)
		c.Args[0] = name
	}

	c.Dir = dir
	c.Env = env

	stdout := &logWriter{logger: r.logger, level: "info"}
	stderr := &logWriter{logger: r.logger, level: "warn"}
	c.Stdout = stdout
	c.Stderr = stderr

	err := c.Run()
	_ = stdout.Close()
	_ = stderr.Close()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, zerr.With(zerr.Wrap(domain.ErrCommandStartFailed, err.Error()), "command", cmd.String())
	}

	return 0, nil
}

type logWriter struct {
	logger ports.Logger
	level  string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}

		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")

	if w.level == "info" {
		w.logger.Info(msg)
	} else {
		w.logger.Warn(msg)
	}
}

// resolveEnvironment overlays overrides on the system environment.
func resolveEnvironment(sysEnv []string, overrides map[string]string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(overrides))
	keys := make([]string, 0, len(sysEnv)+len(overrides))

	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, seen := envMap[k]; !seen {
			keys = append(keys, k)
		}
		envMap[k] = v
	}

	for k, v := range overrides {
		if _, seen := envMap[k]; !seen {
			keys = append(keys, k)
		}
		envMap[k] = v
	}

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, k+"="+envMap[k])
	}
	return result
}

// lookPath searches for an executable in the directories named by the PATH
// entry of env, so PATH overrides apply to the lookup.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "PATH="); ok {
			path = after
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
