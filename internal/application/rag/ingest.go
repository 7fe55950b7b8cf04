package rag

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"agentic-rag-api/internal/application/retrieval"
	"agentic-rag-api/internal/domain/entity"
	"agentic-rag-api/internal/domain/repository"
	"agentic-rag-api/internal/infrastructure/messaging"
	"agentic-rag-api/pkg/logger"
)

var (
	ErrInvalidURL      = errors.New("invalid document url")
	ErrNoURLs          = errors.New("no document urls to ingest")
	ErrIngestDisabled  = errors.New("ingestion queue is not configured")
	ErrIndexerDisabled = errors.New("vector index is not configured")
)

// DocumentLoader 抓取文档
type DocumentLoader interface {
	Load(ctx context.Context, urls []string) ([]retrieval.SourceDocument, error)
}

// DocumentIndexer 切分、向量化并写入向量库
type DocumentIndexer interface {
	Enabled() bool
	Reset(ctx context.Context) error
	IndexDocuments(ctx context.Context, docs []retrieval.SourceDocument) (int, error)
}

// JobPublisher 发布入库任务
type JobPublisher interface {
	PublishIngestJob(ctx context.Context, job *messaging.IngestJobMessage) (string, error)
}

// IngestResult 一次入库的统计
type IngestResult struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// IngestService 文档入库：同步执行（CLI）或经由队列异步执行（API + worker）
type IngestService struct {
	loader      DocumentLoader
	indexer     DocumentIndexer
	jobs        repository.IngestJobRepository
	publisher   JobPublisher
	defaultURLs []string
}

// NewIngestService 创建入库服务；jobs/publisher 可为 nil（仅同步入库）
func NewIngestService(loader DocumentLoader, indexer DocumentIndexer, jobs repository.IngestJobRepository, publisher JobPublisher, defaultURLs []string) *IngestService {
	return &IngestService{
		loader:      loader,
		indexer:     indexer,
		jobs:        jobs,
		publisher:   publisher,
		defaultURLs: defaultURLs,
	}
}

// ResolveURLs 清洗 URL 列表；为空时使用默认语料
func (s *IngestService) ResolveURLs(urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	if len(out) == 0 {
		out = append(out, s.defaultURLs...)
	}
	if len(out) == 0 {
		return nil, ErrNoURLs
	}
	return out, nil
}

// Ingest 同步执行入库
func (s *IngestService) Ingest(ctx context.Context, urls []string, reset bool) (*IngestResult, error) {
	if s.indexer == nil || !s.indexer.Enabled() {
		return nil, ErrIndexerDisabled
	}
	urls, err := s.ResolveURLs(urls)
	if err != nil {
		return nil, err
	}

	if reset {
		if err := s.indexer.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset index: %w", err)
		}
		logger.Info(ctx, "vector collection reset")
	}

	docs, err := s.loader.Load(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	chunks, err := s.indexer.IndexDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("index documents: %w", err)
	}

	logger.Info(ctx, "documents ingested", "urls", len(urls), "documents", len(docs), "chunks", chunks)
	return &IngestResult{Documents: len(docs), Chunks: chunks}, nil
}

// Enqueue 记录入库任务并发布到队列
func (s *IngestService) Enqueue(ctx context.Context, urls []string, reset bool) (*entity.IngestJob, error) {
	if s.jobs == nil || s.publisher == nil {
		return nil, ErrIngestDisabled
	}
	urls, err := s.ResolveURLs(urls)
	if err != nil {
		return nil, err
	}

	job := entity.NewIngestJob(uuid.NewString(), urls, reset)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if _, err := s.publisher.PublishIngestJob(ctx, &messaging.IngestJobMessage{
		JobID: job.ID,
		URLs:  urls,
		Reset: reset,
	}); err != nil {
		job.Fail(err.Error())
		if uerr := s.jobs.Update(ctx, job); uerr != nil {
			logger.Warn(ctx, "failed to mark unpublished job as failed", "job_id", job.ID, "error", uerr.Error())
		}
		return nil, fmt.Errorf("publish ingest job: %w", err)
	}

	logger.Info(ctx, "ingest job enqueued", "job_id", job.ID, "urls", len(urls), "reset", reset)
	return job, nil
}

// GetJob 查询入库任务
func (s *IngestService) GetJob(ctx context.Context, id string) (*entity.IngestJob, error) {
	if s.jobs == nil {
		return nil, ErrIngestDisabled
	}
	return s.jobs.GetByID(ctx, id)
}

// HandleMessage 队列消费入口；返回错误时消息留待重投
func (s *IngestService) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.IngestJobMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		// 载荷损坏重试无意义，直接确认
		logger.Error(ctx, "invalid ingest job payload", err, "message_id", msg.ID)
		return nil
	}

	job, err := s.loadJob(ctx, &payload)
	if err != nil {
		return err
	}
	if job.Status == entity.JobStatusCompleted {
		logger.Info(ctx, "ingest job already completed, skipping", "job_id", job.ID)
		return nil
	}

	job.Start()
	if err := s.jobs.Update(ctx, job); err != nil {
		return err
	}

	result, runErr := s.Ingest(ctx, job.URLs, job.Reset)
	if runErr != nil {
		job.Fail(runErr.Error())
	} else {
		job.Complete(result.Documents, result.Chunks)
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		logger.Warn(ctx, "failed to persist ingest job status", "job_id", job.ID, "error", err.Error())
	}
	return runErr
}

// loadJob 任务记录缺失时（例如直接向流中投递）按消息内容补建
func (s *IngestService) loadJob(ctx context.Context, payload *messaging.IngestJobMessage) (*entity.IngestJob, error) {
	if s.jobs == nil {
		return nil, ErrIngestDisabled
	}
	job, err := s.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		return nil, err
	}
	if job != nil {
		return job, nil
	}

	id := payload.JobID
	if id == "" {
		id = uuid.NewString()
	}
	job = entity.NewIngestJob(id, payload.URLs, payload.Reset)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
