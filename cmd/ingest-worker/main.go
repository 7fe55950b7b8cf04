// Package main 文档入库 worker 入口
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"agentic-rag-api/internal/config"
	einoobs "agentic-rag-api/internal/observability/eino"
	"agentic-rag-api/internal/wire"
	"agentic-rag-api/pkg/logger"
	"agentic-rag-api/pkg/tracer"
)

const dlqAlertThreshold = 10

var Version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	if err := run(cfg); err != nil {
		logger.Fatal(context.Background(), "ingest-worker exited with error", err)
	}
}

func run(cfg *config.Config) error {
	// 处理中的任务在 Stop 返回前完成，ctx 只在 Stop 之后取消
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "ingest-worker",
		Version:     Version,
		Environment: cfg.App.Env,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(flushCtx)
	}()

	einoobs.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize worker: %w", err)
	}
	defer cleanup()

	if !worker.Indexer.Enabled() {
		return errors.New("vector store or embedding unavailable, nothing to index into")
	}

	if err := worker.Consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	go worker.Consumer.MonitorDLQ(ctx, dlqAlertThreshold)
	logger.Info(ctx, "ingest-worker started", "version", Version)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info(ctx, "ingest-worker shutting down, waiting for in-flight job", "signal", sig.String())
	worker.Consumer.Stop()
	return nil
}
