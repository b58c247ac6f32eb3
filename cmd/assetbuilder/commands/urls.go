package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/assetbuilder/internal/app"
	"go.trai.ch/assetbuilder/internal/core/domain"
)

func (c *CLI) newURLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urls <tag>...",
		Short: "Print the cache-busted URLs of the tagged assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.bindFlags(cmd, "autobuild", "separator")
			group, _ := cmd.Flags().GetBool("group")
			urls, err := c.app.URLs(cmd.Context(), app.URLOptions{
				Options:   c.options(),
				Tags:      args,
				Group:     group,
				Separator: c.config.GetString("separator"),
			})
			if err != nil {
				return err
			}
			for _, u := range urls {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("group", "g", false, "Print a single URL serving every asset concatenated")
	cmd.Flags().StringP("separator", "s", domain.DefaultSeparator, "Separator between the files of a group")
	cmd.Flags().BoolP("autobuild", "a", false, "Rebuild stale assets before computing cache-busters")
	return cmd
}
