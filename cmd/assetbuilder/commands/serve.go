package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/assetbuilder/internal/app"
	"go.trai.ch/assetbuilder/internal/core/domain"
)

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve assets over HTTP, rebuilding them on request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.bindFlags(cmd, "listen", "autobuild")
			return c.app.Serve(cmd.Context(), app.ServeOptions{
				Options: c.options(),
				Listen:  c.config.GetString("listen"),
			})
		},
	}
	cmd.Flags().StringP("listen", "l", domain.DefaultListenAddr, "Address to listen on")
	cmd.Flags().BoolP("autobuild", "a", false, "Rebuild stale assets when they are requested")
	return cmd
}
