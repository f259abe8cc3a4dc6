package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"corpuscrawler/internal/api"
	"corpuscrawler/internal/engine"
)

// newCrawlCmd creates the 'crawl' subcommand. It runs one crawl over the
// configured seeds, serving metrics and status over HTTP for the duration.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured seed sites into the dataset",
		RunE:  runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()
	srvDone := make(chan error, 1)
	go func() {
		srvDone <- api.NewServer(eng, eng.Registry(), logger).Run(srvCtx, cfg.Server.Port)
	}()

	runErr := eng.Run(ctx)

	srvCancel()
	if err := <-srvDone; err != nil {
		logger.Warn("api server stopped with error", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run crawl: %w", runErr)
	}
	logger.Info("crawl command finished")
	return nil
}
