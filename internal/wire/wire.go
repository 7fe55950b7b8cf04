//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"agentic-rag-api/internal/application/rag"
	"agentic-rag-api/internal/application/retrieval"
	"agentic-rag-api/internal/config"
	"agentic-rag-api/internal/infrastructure/llm"
	"agentic-rag-api/internal/interfaces/http/handler"
	"agentic-rag-api/internal/interfaces/http/router"
	"agentic-rag-api/internal/workflow/graph"
	workflowport "agentic-rag-api/internal/workflow/port"
)

// InitializeApp 初始化 HTTP 服务（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		ProvidePostgresClientOptional,
		ProvideRedisClientOptional,
		VectorSet,
		WorkflowSet,
		IngestionSet,
		ProvideRunRepository,
		ProvideIngestJobRepository,
		ProvideJobPublisher,
		ProvideRateLimiter,
		ProvideIngestService,
		rag.NewService,
		HTTPSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化入库 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		ProvidePostgresClient,
		ProvideRedisClient,
		VectorSet,
		IngestionSet,
		ProvideIngestJobRepository,
		ProvideJobPublisher,
		ProvideIngestService,
		ProvideIngestConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeAskCLI 初始化命令行问答，不记录运行历史
func InitializeAskCLI(ctx context.Context, cfg *config.Config) (*rag.Service, func(), error) {
	wire.Build(
		ProvideRedisClientOptional,
		VectorSet,
		WorkflowSet,
		ProvideLocalRAGService,
	)
	return nil, nil, nil
}

// InitializeIngestCLI 初始化命令行同步入库
func InitializeIngestCLI(ctx context.Context, cfg *config.Config) (*rag.IngestService, func(), error) {
	wire.Build(
		VectorSet,
		IngestionSet,
		ProvideLocalIngestService,
	)
	return nil, nil, nil
}

// VectorSet Milvus 与 Embedder（均可选，不可用时向量能力禁用）
var VectorSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideRetrievalVectorRepository,
	ProvideEmbedderOptional,
)

// WorkflowSet 问答工作流
var WorkflowSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	ProvideRetrievalEngine,
	ProvideWebSearchCache,
	ProvideWebSearcher,
	ProvideController,
	wire.Bind(new(rag.Workflow), new(*graph.Controller)),
)

// IngestionSet 文档抓取、切分与索引
var IngestionSet = wire.NewSet(
	ProvideWebLoader,
	ProvideSplitter,
	ProvideRetrievalIndexer,
	wire.Bind(new(rag.DocumentLoader), new(*retrieval.WebLoader)),
	wire.Bind(new(rag.DocumentIndexer), new(*retrieval.Indexer)),
)

// HTTPSet 处理器与路由
var HTTPSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewAskHandler,
	handler.NewRunHandler,
	handler.NewIngestHandler,
	wire.Bind(new(handler.AskService), new(*rag.Service)),
	wire.Bind(new(handler.RunService), new(*rag.Service)),
	wire.Bind(new(handler.IngestService), new(*rag.IngestService)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
