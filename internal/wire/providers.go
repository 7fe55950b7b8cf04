package wire

import (
	"context"
	"time"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"

	"agentic-rag-api/internal/application/rag"
	"agentic-rag-api/internal/application/retrieval"
	"agentic-rag-api/internal/config"
	"agentic-rag-api/internal/domain/repository"
	infraembedding "agentic-rag-api/internal/infrastructure/embedding"
	"agentic-rag-api/internal/infrastructure/messaging"
	"agentic-rag-api/internal/infrastructure/persistence/milvus"
	"agentic-rag-api/internal/infrastructure/persistence/postgres"
	"agentic-rag-api/internal/infrastructure/persistence/redis"
	"agentic-rag-api/internal/infrastructure/websearch"
	"agentic-rag-api/internal/interfaces/http/handler"
	"agentic-rag-api/internal/interfaces/http/middleware"
	"agentic-rag-api/internal/workflow/chain"
	"agentic-rag-api/internal/workflow/grader"
	"agentic-rag-api/internal/workflow/graph"
	wfmodel "agentic-rag-api/internal/workflow/model"
	workflowport "agentic-rag-api/internal/workflow/port"
	workflowprompt "agentic-rag-api/internal/workflow/prompt"
	"agentic-rag-api/internal/workflow/step"
	"agentic-rag-api/pkg/logger"
)

// ProvidePostgresClient 提供 PostgreSQL 客户端（worker 必需）
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvidePostgresClientOptional 不可用时关闭运行历史与入库任务接口
func ProvidePostgresClientOptional(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	client, cleanup, err := ProvidePostgresClient(cfg)
	if err != nil {
		logger.Warn(ctx, "postgres not available, run history and ingest jobs disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端（worker 必需）
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideRedisClientOptional 不可用时关闭限流、搜索缓存与入库队列
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	client, cleanup, err := ProvideRedisClient(cfg)
	if err != nil {
		logger.Warn(ctx, "redis not available, rate limit, search cache and ingest queue disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, cleanup, nil
}

// ProvideMilvusClientOptional 不可用时向量检索与索引返回 ErrVectorDisabled
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector features disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideRetrievalVectorRepository(client *milvus.Client, cfg *config.Config) retrieval.VectorRepository {
	if client == nil {
		return nil
	}
	return milvus.NewRetrievalVectorRepository(milvus.NewRepository(client, cfg.Embedding.Dimension))
}

func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) (einoembedding.Embedder, error) {
	embedder, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector features disabled", "error", err.Error())
		return nil, nil
	}
	return embedder, nil
}

// RetrievalOptions 将配置转换为检索默认参数
func RetrievalOptions(cfg *config.Config) retrieval.Options {
	r := cfg.Retrieval
	return retrieval.DefaultOptions().Merge(&wfmodel.RetrievalConfig{
		SearchType:     wfmodel.SearchMethod(r.SearchType),
		K:              r.K,
		FetchK:         r.FetchK,
		LambdaMult:     wfmodel.Float64(r.LambdaMult),
		ScoreThreshold: wfmodel.Float64(r.ScoreThreshold),
	})
}

func ProvideRetrievalEngine(cfg *config.Config, embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository) *retrieval.Engine {
	return retrieval.NewEngine(embedder, vectorRepo, RetrievalOptions(cfg))
}

func ProvideSplitter(cfg *config.Config) *retrieval.Splitter {
	return retrieval.NewSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
}

func ProvideRetrievalIndexer(cfg *config.Config, embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository, splitter *retrieval.Splitter) *retrieval.Indexer {
	return retrieval.NewIndexer(embedder, vectorRepo, splitter, cfg.Embedding.BatchSize)
}

func ProvideWebLoader() *retrieval.WebLoader {
	return retrieval.NewWebLoader(30 * time.Second)
}

// ProvideWebSearchCache 关闭缓存或 Redis 不可用时返回 nil
func ProvideWebSearchCache(cfg *config.Config, client *redis.Client) websearch.ResultCache {
	if client == nil || !cfg.Features.WebSearchCache.Enabled {
		return nil
	}
	return redis.NewCache(client)
}

func ProvideWebSearcher(cfg *config.Config, cache websearch.ResultCache) (workflowport.WebSearcher, error) {
	tavily, err := websearch.NewTavilyClient(&cfg.WebSearch)
	if err != nil {
		return nil, err
	}
	return websearch.NewCachedSearcher(tavily, cache, cfg.WebSearch.CacheTTL), nil
}

// ProvideController 组装问答工作流：四个判定器、四个步骤与转移表
func ProvideController(cfg *config.Config, factory workflowport.ChatModelFactory, engine *retrieval.Engine, searcher workflowport.WebSearcher) (*graph.Controller, error) {
	if err := workflowprompt.Default.Preload(); err != nil {
		return nil, err
	}

	w := cfg.Workflow
	opts := grader.Options{
		Provider:    w.LLMProvider,
		Temperature: float32(w.Temperature),
	}
	temperature := float32(w.Temperature)
	answer := chain.NewAnswerChain(factory, wfmodel.LLMOptions{
		Provider:    w.LLMProvider,
		Temperature: &temperature,
	})

	return graph.New(graph.Deps{
		Router: grader.NewRouter(factory, opts),
		Checker: grader.NewGenerationChecker(
			grader.NewHallucinationGrader(factory, opts),
			grader.NewAnswerGrader(factory, opts),
		),
		Retrieve:       step.NewRetrieve(engine),
		GradeDocuments: step.NewGradeDocuments(grader.NewRelevanceGrader(factory, opts), w.IrrelevantThreshold),
		WebSearch:      step.NewWebSearch(searcher, cfg.WebSearch.MaxResults),
		Generate:       step.NewGenerate(answer),
	}, graph.Config{MaxGenerations: w.MaxGenerations})
}

// ProvideRunRepository 仅在开启运行历史且 PostgreSQL 可用时返回仓储
func ProvideRunRepository(cfg *config.Config, pg *postgres.Client) repository.RunRepository {
	if pg == nil || !cfg.Features.RunHistory.Enabled {
		return nil
	}
	return postgres.NewRunRepository(pg)
}

func ProvideIngestJobRepository(pg *postgres.Client) repository.IngestJobRepository {
	if pg == nil {
		return nil
	}
	return postgres.NewIngestJobRepository(pg)
}

func ProvideJobPublisher(client *redis.Client, cfg *config.Config) rag.JobPublisher {
	if client == nil {
		return nil
	}
	return messaging.NewProducer(client.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

func ProvideIngestService(cfg *config.Config, loader rag.DocumentLoader, indexer rag.DocumentIndexer, jobs repository.IngestJobRepository, publisher rag.JobPublisher) *rag.IngestService {
	return rag.NewIngestService(loader, indexer, jobs, publisher, cfg.Retrieval.DefaultURLs)
}

// ProvideLocalIngestService 命令行同步入库，不经过队列
func ProvideLocalIngestService(cfg *config.Config, loader rag.DocumentLoader, indexer rag.DocumentIndexer) *rag.IngestService {
	return rag.NewIngestService(loader, indexer, nil, nil, cfg.Retrieval.DefaultURLs)
}

// ProvideLocalRAGService 命令行问答，不记录运行历史
func ProvideLocalRAGService(workflow rag.Workflow) *rag.Service {
	return rag.NewService(workflow, nil)
}

// ProvideHealthHandler 只把已连接的客户端注册为检查项
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, rc *redis.Client, mc *milvus.Client) *handler.HealthHandler {
	deps := []handler.Dependency{{Name: "milvus", Required: true}, {Name: "redis"}, {Name: "postgres"}}
	if mc != nil {
		deps[0].Checker = mc
	}
	if rc != nil {
		deps[1].Checker = rc
	}
	if pg != nil {
		deps[2].Checker = pg
	}
	return handler.NewHealthHandler(cfg.App.Version, deps...)
}

// ProvideIngestConsumer 创建入库 worker 的消费者并注册处理函数
func ProvideIngestConsumer(cfg *config.Config, client *redis.Client, svc *rag.IngestService) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	c := messaging.NewConsumer(client.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamIngest,
		Group:         messaging.ConsumerGroupIngestWorker,
		ConsumerName:  "ingest-worker-" + uuid.NewString()[:8],
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	c.RegisterHandler(messaging.MessageTypeIngest, svc.HandleMessage)
	return c
}
