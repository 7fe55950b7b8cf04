package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"agentic-rag-api/pkg/logger"

	wfmodel "agentic-rag-api/internal/workflow/model"
	workflowport "agentic-rag-api/internal/workflow/port"
)

// Engine 向量检索：嵌入查询 -> Milvus 召回 -> 阈值过滤 -> 可选 MMR 重排
type Engine struct {
	embedder embedding.Embedder
	vector   VectorRepository
	defaults Options
}

var _ workflowport.Retriever = (*Engine)(nil)

func NewEngine(embedder embedding.Embedder, vectorRepo VectorRepository, defaults Options) *Engine {
	return &Engine{
		embedder: embedder,
		vector:   vectorRepo,
		defaults: defaults,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.vector != nil
}

// Retrieve 按检索参数返回排好序的片段；空结果不是错误
func (e *Engine) Retrieve(ctx context.Context, query string, cfg *wfmodel.RetrievalConfig) ([]wfmodel.Passage, error) {
	if !e.Enabled() {
		return nil, ErrVectorDisabled
	}
	opts := e.defaults.Merge(cfg)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("query is required")
	}

	start := time.Now()
	emb, err := e.embedQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	topK := opts.K
	if opts.UsesMMR() {
		topK = opts.FetchK
	}
	results, err := e.vector.Search(ctx, &VectorSearchParams{
		QueryVector: emb,
		TopK:        topK,
		WithVectors: opts.UsesMMR(),
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]*VectorSearchResult, 0, len(results))
	for _, r := range results {
		if r == nil || float64(r.Score) < opts.ScoreThreshold {
			continue
		}
		candidates = append(candidates, r)
	}

	if opts.UsesMMR() {
		candidates = rerankMMR(emb, candidates, opts.LambdaMult, opts.K)
	} else if len(candidates) > opts.K {
		candidates = candidates[:opts.K]
	}

	out := make([]wfmodel.Passage, 0, len(candidates))
	for _, r := range candidates {
		out = append(out, toPassage(r))
	}
	logger.Debug(ctx, "retrieval finished",
		"search_type", opts.SearchType,
		"candidates", len(results),
		"returned", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func rerankMMR(query []float32, candidates []*VectorSearchResult, lambda float64, k int) []*VectorSearchResult {
	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vectors[i] = c.Vector
	}
	order := maximalMarginalRelevance(query, vectors, lambda, k)
	out := make([]*VectorSearchResult, 0, len(order))
	for _, idx := range order {
		out = append(out, candidates[idx])
	}
	return out
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	v64, err := e.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(v64) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return toFloat32(v64[0]), nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out
}
