package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newReplaceCmd creates the replace command.
func newReplaceCmd() *cobra.Command {
	var allGroups []string
	var rootGroups []string

	cmd := &cobra.Command{
		Use:   "replace <source-dir>",
		Short: "Replace the index contents with another index's",
		Long: `Replace the configured index's entire contents with those of another
index root, typically a freshly downloaded remote snapshot. The index
keeps its own identity; the sync timestamp is taken from the source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := openContext(cmd, nil)
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() { _ = ctx.Close(false) }()

			var all, root []string
			if cmd.Flags().Changed("all-groups") {
				all = allGroups
			}
			if cmd.Flags().Changed("root-groups") {
				root = rootGroups
			}

			if err := ctx.Replace(args[0], all, root); err != nil {
				return reportError(cmd, err)
			}

			size, err := ctx.Size()
			if err != nil {
				return reportError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replaced contents of %s from %s (%d documents)\n",
				ctx.Dir(), args[0], size)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&allGroups, "all-groups", nil, "Adopt this all-groups set instead of rebuilding")
	cmd.Flags().StringSliceVar(&rootGroups, "root-groups", nil, "Adopt this root-groups set instead of rebuilding")

	return cmd
}
