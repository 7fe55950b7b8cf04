// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agentic-rag-api/pkg/metrics"
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
	dim    int
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client, dim int) *Repository {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &Repository{client: client, dim: dim}
}

// SearchParams 检索参数
type SearchParams struct {
	QueryVector []float32
	TopK        int
	WithVectors bool
}

// SearchResult 检索结果；Score 为 COSINE 相似度
type SearchResult struct {
	ID          string
	Score       float32
	Source      string
	Title       string
	ChunkIndex  int64
	TextContent string
	Vector      []float32
}

func (r *Repository) ready() error {
	if r == nil || r.client == nil || r.client.sdk == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

// createCollection 按 PassagesSchema 建集合并建 HNSW 索引
func (r *Repository) createCollection(ctx context.Context) error {
	c := r.client
	ctx, span := c.span(ctx, "CreateCollection")
	defer span.End()

	if err := c.sdk.CreateCollection(ctx, PassagesSchema(c.collection, r.dim), entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, c.cfg.HNSWM, c.cfg.HNSWEfConstruction)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("build hnsw index params: %w", err)
	}
	if err := c.sdk.CreateIndex(ctx, c.collection, FieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("create index on %s: %w", c.collection, err)
	}
	return nil
}

// EnsureCollection 集合不存在时创建，随后加载到内存；从不删除已有数据
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	exists, err := r.client.hasCollection(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.createCollection(ctx); err != nil {
			return err
		}
	}
	return r.client.loadCollection(ctx)
}

// DropCollection 删除片段集合；不存在时直接返回
func (r *Repository) DropCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	exists, err := r.client.hasCollection(ctx)
	if err != nil || !exists {
		return err
	}
	return r.client.dropCollection(ctx)
}

// Search 检索片段，结果按相似度降序
func (r *Repository) Search(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	collName := r.client.Collection()
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.String("collection", collName),
			attribute.Int("top_k", params.TopK),
			attribute.Bool("with_vectors", params.WithVectors),
		))
	defer span.End()

	start := time.Now()
	results, err := r.search(ctx, collName, params)
	metrics.MilvusSearchDuration.WithLabelValues(collName).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(collName, "error").Inc()
		return nil, err
	}
	metrics.MilvusSearchTotal.WithLabelValues(collName, "ok").Inc()
	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

func (r *Repository) search(ctx context.Context, collName string, params *SearchParams) ([]*SearchResult, error) {
	ef := r.client.cfg.SearchEf
	if ef < params.TopK {
		ef = params.TopK
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	outputFields := []string{FieldID, FieldSource, FieldTitle, FieldChunkIndex, FieldText}
	if params.WithVectors {
		outputFields = append(outputFields, FieldVector)
	}

	results, err := r.client.sdk.Search(ctx,
		collName,
		nil,
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		FieldVector,
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var out []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}

			if col, ok := result.Fields.GetColumn(FieldID).(*entity.ColumnVarChar); ok {
				sr.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldSource).(*entity.ColumnVarChar); ok {
				sr.Source = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldTitle).(*entity.ColumnVarChar); ok {
				sr.Title = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldChunkIndex).(*entity.ColumnInt64); ok {
				sr.ChunkIndex = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldText).(*entity.ColumnVarChar); ok {
				sr.TextContent = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldVector).(*entity.ColumnFloatVector); ok {
				sr.Vector = col.Data()[i]
			}

			out = append(out, sr)
		}
	}
	return out, nil
}

// Insert 写入片段并 flush，使其立即可检索
func (r *Repository) Insert(ctx context.Context, passages []*Passage) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.Insert",
		trace.WithAttributes(attribute.Int("count", len(passages))))
	defer span.End()

	if len(passages) == 0 {
		return nil
	}

	collName := r.client.Collection()

	ids := make([]string, len(passages))
	vectors := make([][]float32, len(passages))
	sources := make([]string, len(passages))
	titles := make([]string, len(passages))
	chunkIdx := make([]int64, len(passages))
	texts := make([]string, len(passages))

	for i, p := range passages {
		if len(p.Vector) != r.dim {
			return fmt.Errorf("passage %s: vector dimension %d, collection expects %d", p.ID, len(p.Vector), r.dim)
		}
		ids[i] = p.ID
		vectors[i] = p.Vector
		sources[i] = truncateBytes(p.Source, 1024)
		titles[i] = truncateBytes(p.Title, 512)
		chunkIdx[i] = p.ChunkIndex
		texts[i] = truncateBytes(p.TextContent, maxTextLength)
	}

	_, err := r.client.sdk.Insert(ctx, collName, "",
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldVector, r.dim, vectors),
		entity.NewColumnVarChar(FieldSource, sources),
		entity.NewColumnVarChar(FieldTitle, titles),
		entity.NewColumnInt64(FieldChunkIndex, chunkIdx),
		entity.NewColumnVarChar(FieldText, texts),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert passages: %w", err)
	}

	if err := r.client.sdk.Flush(ctx, collName, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	return nil
}
