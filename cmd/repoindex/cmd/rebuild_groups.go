package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRebuildGroupsCmd creates the rebuild-groups command.
func newRebuildGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild-groups",
		Short: "Recompute the group sets from the index contents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := openContext(cmd, nil)
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() { _ = ctx.Close(false) }()

			if err := ctx.RebuildGroups(); err != nil {
				return reportError(cmd, err)
			}

			all := ctx.AllGroups()
			root := ctx.RootGroups()
			fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt groups: %d total, %d root\n", len(all), len(root))
			for _, g := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", g)
			}
			return nil
		},
	}

	return cmd
}
