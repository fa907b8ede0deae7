// Package cmd provides the CLI commands for repoindex.
package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"repoindex/internal/config"
	"repoindex/internal/errors"
	"repoindex/internal/index"
	"repoindex/internal/logging"
	"repoindex/pkg/version"
)

// Flags shared by every subcommand.
var (
	cfgPath  string
	indexDir string
	waitLock time.Duration

	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the repoindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repoindex",
		Short: "Manage persistent repository search indexes",
		Long: `Repoindex maintains a persistent, lockable search index describing the
contents of a component repository: creating and recovering indexes,
merging and replacing their contents, and rebuilding group sets.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("repoindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default .repoindex.yaml)")
	cmd.PersistentFlags().StringVar(&indexDir, "dir", "", "Index root directory (overrides config)")
	cmd.PersistentFlags().DurationVar(&waitLock, "wait-lock", 0, "Keep retrying for this long when the index lock is held")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.repoindex/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newReplaceCmd())
	cmd.AddCommand(newPurgeCmd())
	cmd.AddCommand(newRebuildGroupsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug logging if requested.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	cleanup, err := logging.SetupDefault()
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Info("Debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

// stopLogging flushes and closes the debug log.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// loadConfig resolves the effective configuration from the config file
// and the global flags.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, err
	}
	if indexDir != "" {
		cfg.Index.Dir = indexDir
	}
	return cfg, nil
}

// contextConfig maps file configuration onto an index context config.
func contextConfig(cfg *config.Config) index.Config {
	return index.Config{
		ID:              cfg.Index.ID,
		RepositoryID:    cfg.Index.RepositoryID,
		RepositoryRoot:  cfg.Index.RepositoryRoot,
		RepositoryURL:   cfg.Index.RepositoryURL,
		IndexUpdateURL:  cfg.Index.IndexUpdateURL,
		Dir:             cfg.Index.Dir,
		DecodeCacheSize: cfg.Index.DecodeCacheSize,
	}
}

// openContext opens the configured index context, retrying lock
// contention for the --wait-lock window.
func openContext(cmd *cobra.Command, mutate func(*index.Config)) (*index.Context, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ixCfg := contextConfig(cfg)
	if mutate != nil {
		mutate(&ixCfg)
	}

	if waitLock <= 0 {
		return index.Open(ixCfg)
	}

	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = int(waitLock / retry.InitialDelay)
	return errors.RetryWithResult(cmd.Context(), retry, func() (*index.Context, error) {
		return index.Open(ixCfg)
	})
}

// reportError prints a classified error for humans and returns it for
// the exit code. Debug mode adds the cause chain.
func reportError(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	msg := errors.FormatForCLI(err)
	if debugMode {
		msg = errors.FormatForUser(err, true)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), msg)
	return err
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
