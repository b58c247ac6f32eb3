package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/assetbuilder/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild every registered asset once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clean, _ := cmd.Flags().GetBool("clean")
			manifest, _ := cmd.Flags().GetBool("manifest")
			return c.app.Build(cmd.Context(), app.BuildOptions{
				Options:  c.options(),
				Clean:    clean,
				Manifest: manifest,
			})
		},
	}
	cmd.Flags().Bool("clean", false, "Remove every asset output before rebuilding")
	cmd.Flags().BoolP("manifest", "m", false, "Write the URLs of every tag to the manifest")
	return cmd
}
