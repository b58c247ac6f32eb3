package commands

import (
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/assetbuilder/internal/app"
	"go.trai.ch/assetbuilder/internal/core/domain"
)

func (c *CLI) newCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <tag>...",
		Short: "Print the concatenated content of the tagged assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.bindFlags(cmd, "autobuild", "separator")
			content, err := c.app.Cat(cmd.Context(), app.CatOptions{
				Options:   c.options(),
				Tags:      args,
				Separator: c.config.GetString("separator"),
			})
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), content)
			return err
		},
	}
	cmd.Flags().StringP("separator", "s", domain.DefaultSeparator, "Separator between files")
	cmd.Flags().BoolP("autobuild", "a", false, "Rebuild stale assets first")
	return cmd
}
