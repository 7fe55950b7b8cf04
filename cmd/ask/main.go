// Package main 命令行问答：流式打印节点进度，最后输出回答
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"agentic-rag-api/internal/application/rag"
	"agentic-rag-api/internal/config"
	einoobs "agentic-rag-api/internal/observability/eino"
	"agentic-rag-api/internal/wire"
	wfmodel "agentic-rag-api/internal/workflow/model"
	"agentic-rag-api/pkg/logger"
)

type options struct {
	sync       bool
	searchType string
	k          int
	fetchK     int
	lambda     float64
	threshold  float64
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "ask [question]",
		Short:        "Ask a question against the indexed corpus and the web",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, strings.Join(args, " "), opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.sync, "sync", false, "wait for the final answer without printing node progress")
	f.StringVar(&opts.searchType, "search-type", "", "retrieval method: similarity, mmr or diversity")
	f.IntVar(&opts.k, "k", 0, "number of passages to retrieve")
	f.IntVar(&opts.fetchK, "fetch-k", 0, "candidate pool size for mmr")
	f.Float64Var(&opts.lambda, "lambda", -1, "mmr relevance/diversity trade-off in [0,1]")
	f.Float64Var(&opts.threshold, "score-threshold", -1, "minimum similarity score in [0,1]")
	return cmd
}

func run(cmd *cobra.Command, question string, opts *options) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// stdout 只输出回答
	logger.InitWithWriter(cmd.ErrOrStderr(), cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	einoobs.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := wire.InitializeAskCLI(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	req := rag.AskRequest{Question: question, RetrievalConfig: opts.retrievalConfig(cmd)}
	out := cmd.OutOrStdout()

	var final *wfmodel.State
	if opts.sync {
		final, err = svc.Ask(ctx, req)
	} else {
		final, err = stream(ctx, svc, req, func(line string) { fmt.Fprintln(out, line) })
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, final.Generation)
	if final.Caveat != "" {
		fmt.Fprintf(out, "\nNote: %s\n", final.Caveat)
	}
	return nil
}

func stream(ctx context.Context, svc *rag.Service, req rag.AskRequest, emit func(string)) (*wfmodel.State, error) {
	_, events := svc.Stream(ctx, req)
	for ev := range events {
		switch {
		case ev.Err != nil:
			return nil, ev.Err
		case ev.Final != nil:
			return ev.Final, nil
		case ev.Update != nil:
			emit(describeUpdate(ev.Update))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("workflow stream closed without a result")
}

// retrievalConfig 只覆盖显式设置的参数
func (o *options) retrievalConfig(cmd *cobra.Command) *wfmodel.RetrievalConfig {
	f := cmd.Flags()
	if !f.Changed("search-type") && !f.Changed("k") && !f.Changed("fetch-k") &&
		!f.Changed("lambda") && !f.Changed("score-threshold") {
		return nil
	}
	rc := &wfmodel.RetrievalConfig{
		SearchType: wfmodel.SearchMethod(o.searchType),
		K:          o.k,
		FetchK:     o.fetchK,
	}
	if f.Changed("lambda") {
		rc.LambdaMult = wfmodel.Float64(o.lambda)
	}
	if f.Changed("score-threshold") {
		rc.ScoreThreshold = wfmodel.Float64(o.threshold)
	}
	return rc
}
