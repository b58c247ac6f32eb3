// Package commands implements the CLI commands for assetbuilder.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.trai.ch/assetbuilder/internal/adapters/logger"
	"go.trai.ch/assetbuilder/internal/app"
	"go.trai.ch/assetbuilder/internal/build"
	"go.trai.ch/assetbuilder/internal/core/ports"
)

// EnvPrefix prefixes every environment variable bound to a flag,
// e.g. ASSETBUILDER_LISTEN.
const EnvPrefix = "ASSETBUILDER"

// Application represents the application logic interface.
type Application interface {
	Serve(ctx context.Context, opts app.ServeOptions) error
	Build(ctx context.Context, opts app.BuildOptions) error
	URLs(ctx context.Context, opts app.URLOptions) ([]string, error)
	Cat(ctx context.Context, opts app.CatOptions) (string, error)
}

// levelSetter is implemented by loggers that support runtime reconfiguration.
type levelSetter interface {
	SetLevel(level slog.Level)
	SetJSON(enable bool)
}

// CLI represents the command line interface for assetbuilder.
type CLI struct {
	app     Application
	logger  ports.Logger
	config  *viper.Viper
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a Application, log ports.Logger) *CLI {
	rootCmd := &cobra.Command{
		Use:           "assetbuilder",
		Short:         "Build and serve static assets on demand",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to assetbuilder.yaml (default: discovered upwards)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json", false, "Emit logs as JSON")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"config", "log-level", "json"} {
		_ = v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	c := &CLI{
		app:     a,
		logger:  log,
		config:  v,
		rootCmd: rootCmd,
	}
	rootCmd.PersistentPreRunE = c.configureLogger

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newURLsCmd())
	rootCmd.AddCommand(c.newCatCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func (c *CLI) configureLogger(_ *cobra.Command, _ []string) error {
	ls, ok := c.logger.(levelSetter)
	if !ok {
		return nil
	}

	level, err := logger.ParseLevel(c.config.GetString("log-level"))
	if err != nil {
		return err
	}
	ls.SetLevel(level)
	ls.SetJSON(c.config.GetBool("json"))
	return nil
}

// bindFlags binds the running command's local flags. Commands share keys
// such as "autobuild", so binding happens at execution time.
func (c *CLI) bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = c.config.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

// options returns the shared options. The autobuild override is only set
// when the flag or its environment variable was given.
func (c *CLI) options() app.Options {
	opts := app.Options{ConfigPath: c.config.GetString("config")}
	if c.config.IsSet("autobuild") {
		autobuild := c.config.GetBool("autobuild")
		opts.Autobuild = &autobuild
	}
	return opts
}
