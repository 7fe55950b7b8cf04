// Package main 命令行文档入库：抓取网页、切分、向量化并写入 Milvus
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"agentic-rag-api/internal/config"
	"agentic-rag-api/internal/wire"
	"agentic-rag-api/pkg/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		urls  []string
		reset bool
	)
	cmd := &cobra.Command{
		Use:          "ingest",
		Short:        "Load web pages into the vector store",
		Long:         "Fetches each URL, splits the text into chunks and indexes them. Without --url the configured default URLs are used.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logger.InitWithWriter(cmd.ErrOrStderr(), cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, cleanup, err := wire.InitializeIngestCLI(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			defer cleanup()

			res, err := svc.Ingest(ctx, urls, reset)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks from %d documents\n", res.Chunks, res.Documents)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&urls, "url", nil, "page to ingest (repeatable)")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop existing passages before indexing")
	return cmd
}
