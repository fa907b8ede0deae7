package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// indexInfo is the machine-readable info payload.
type indexInfo struct {
	ID             string   `json:"id"`
	RepositoryID   string   `json:"repository_id"`
	Dir            string   `json:"dir"`
	RepositoryURL  string   `json:"repository_url,omitempty"`
	IndexUpdateURL string   `json:"index_update_url,omitempty"`
	Documents      uint64   `json:"documents"`
	Timestamp      string   `json:"timestamp,omitempty"`
	AllGroups      []string `json:"all_groups"`
	RootGroups     []string `json:"root_groups"`
}

// newInfoCmd creates the info command.
func newInfoCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index identity, size, groups, and sync state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := openContext(cmd, nil)
			if err != nil {
				return reportError(cmd, err)
			}
			defer func() { _ = ctx.Close(false) }()

			if err := ctx.RebuildGroups(); err != nil {
				return reportError(cmd, err)
			}
			size, err := ctx.Size()
			if err != nil {
				return reportError(cmd, err)
			}

			info := indexInfo{
				ID:             ctx.ID(),
				RepositoryID:   ctx.RepositoryID(),
				Dir:            ctx.Dir(),
				RepositoryURL:  ctx.RepositoryURL(),
				IndexUpdateURL: ctx.IndexUpdateURL(),
				Documents:      size,
				AllGroups:      ctx.AllGroups(),
				RootGroups:     ctx.RootGroups(),
			}
			if ts := ctx.Timestamp(); ts != nil {
				info.Timestamp = ts.UTC().Format(time.RFC3339)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			printInfo(cmd, info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printInfo(cmd *cobra.Command, info indexInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Index:       %s\n", info.ID)
	fmt.Fprintf(out, "Repository:  %s\n", info.RepositoryID)
	fmt.Fprintf(out, "Directory:   %s\n", info.Dir)
	if info.RepositoryURL != "" {
		fmt.Fprintf(out, "URL:         %s\n", info.RepositoryURL)
	}
	if info.IndexUpdateURL != "" {
		fmt.Fprintf(out, "Update URL:  %s\n", info.IndexUpdateURL)
	}
	fmt.Fprintf(out, "Documents:   %d\n", info.Documents)
	if info.Timestamp != "" {
		fmt.Fprintf(out, "Synced:      %s\n", info.Timestamp)
	} else {
		fmt.Fprintf(out, "Synced:      never\n")
	}
	fmt.Fprintf(out, "Groups:      %d (%d root)\n", len(info.AllGroups), len(info.RootGroups))
	for _, g := range info.AllGroups {
		fmt.Fprintf(out, "  %s\n", g)
	}
}
