package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"repoindex/internal/schema"
	"repoindex/internal/store"
)

// newMergeCmd creates the merge command.
func newMergeCmd() *cobra.Command {
	var groupPrefix string

	cmd := &cobra.Command{
		Use:   "merge <source-dir>",
		Short: "Merge another index into this one",
		Long: `Merge the contents of another index root into the configured index.
Documents already present in the target are kept as-is; deletion
records from the source are replayed against the target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := openContext(cmd, nil)
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() { _ = ctx.Close(false) }()

			var filter store.Filter
			if groupPrefix != "" {
				filter = func(doc *store.Document) bool {
					return strings.HasPrefix(doc.Get(schema.FieldGroup), groupPrefix)
				}
			}

			if err := ctx.Merge(args[0], filter); err != nil {
				return reportError(cmd, err)
			}

			size, err := ctx.Size()
			if err != nil {
				return reportError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %s into %s (%d documents)\n",
				args[0], ctx.Dir(), size)
			return nil
		},
	}

	cmd.Flags().StringVar(&groupPrefix, "group-prefix", "", "Only merge artifacts whose group id has this prefix")

	return cmd
}
