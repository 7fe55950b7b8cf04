package port

import (
	"context"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// Retriever 向量检索端口：按检索参数返回排好序的片段，空结果不是错误
type Retriever interface {
	Retrieve(ctx context.Context, query string, cfg *wfmodel.RetrievalConfig) ([]wfmodel.Passage, error)
}

// WebSearcher 联网搜索端口
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]wfmodel.SearchResult, error)
}
