package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repoindex/internal/index"
)

// newCreateCmd creates the create command.
func newCreateCmd() *cobra.Command {
	var contextID string
	var repositoryID string
	var repositoryURL string
	var reclaim bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or open a repository index",
		Long: `Create a new index for a repository, or open an existing one at the
configured directory. Opening validates that the index on disk belongs
to the same repository; --reclaim takes ownership of a foreign or
damaged index instead of failing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := openContext(cmd, func(c *index.Config) {
				if contextID != "" {
					c.ID = contextID
				}
				if repositoryID != "" {
					c.RepositoryID = repositoryID
				}
				if repositoryURL != "" {
					c.RepositoryURL = repositoryURL
				}
				c.Reclaim = reclaim
			})
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() { _ = ctx.Close(false) }()

			size, err := ctx.Size()
			if err != nil {
				return reportError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index ready: repository %s at %s (%d documents)\n",
				ctx.RepositoryID(), ctx.Dir(), size)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextID, "id", "", "Index context id (generated when empty)")
	cmd.Flags().StringVar(&repositoryID, "repository-id", "", "Repository id the index represents")
	cmd.Flags().StringVar(&repositoryURL, "repository-url", "", "Public URL of the repository")
	cmd.Flags().BoolVar(&reclaim, "reclaim", false, "Take ownership of an existing index, recovering damage by recreating it")

	return cmd
}
