package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newPurgeCmd creates the purge command.
func newPurgeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Wipe the index and recreate it empty",
		Long: `Remove every document from the configured index and reset it to a
freshly created state: empty group sets and no sync timestamp. The
index directory and identity are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := openContext(cmd, nil)
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() { _ = ctx.Close(false) }()

			if !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Purge index for repository %s at %s? [y/N]: ",
					ctx.RepositoryID(), ctx.Dir())
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, _ := reader.ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := ctx.Purge(); err != nil {
				return reportError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged index at %s\n", ctx.Dir())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}
