package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"corpuscrawler/internal/corpus"
	"corpuscrawler/internal/lingua"
	"corpuscrawler/internal/logging"
)

// newProcessCmd creates the 'process' subcommand: it runs the linguistic
// pipeline over an already-crawled dataset.
func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Tokenize, tag, and profile the crawled dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			manager, err := corpus.NewManager(cfg.Dataset.Dir, logging.Named(logger, "corpus"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			proc := lingua.NewProcessor(manager, lingua.NewAnalyzer(), logging.Named(logger, "lingua"))
			if err := proc.Run(ctx); err != nil {
				return fmt.Errorf("process dataset: %w", err)
			}
			return nil
		},
	}
}

// newValidateCmd creates the 'validate' subcommand: dataset consistency
// checks without any processing.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check dataset numeration and file consistency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			if err := corpus.ValidateDataset(cfg.Dataset.Dir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "dataset ok")
			return nil
		},
	}
}
