package retrieval

import "context"

// VectorRepository 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Milvus）。
type VectorRepository interface {
	EnsureCollection(ctx context.Context) error
	DropCollection(ctx context.Context) error
	Search(ctx context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error)
	Insert(ctx context.Context, chunks []*VectorChunk) error
}

type VectorSearchParams struct {
	QueryVector []float32
	TopK        int
	// WithVectors 为 true 时返回候选向量（MMR 重排需要）
	WithVectors bool
}

// VectorSearchResult Score 为余弦相似度，越大越相关
type VectorSearchResult struct {
	ID         string
	Score      float32
	Source     string
	Title      string
	ChunkIndex int64
	Text       string
	Vector     []float32
}

type VectorChunk struct {
	ID         string
	Source     string
	Title      string
	ChunkIndex int64
	Text       string
	Vector     []float32
}
