package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"

	"agentic-rag-api/pkg/logger"
	"agentic-rag-api/pkg/metrics"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

const defaultEmbeddingBatch = 32

// TextSplitter 文本切分
type TextSplitter interface {
	Split(text string) []string
}

type Indexer struct {
	embedder embedding.Embedder
	vector   VectorRepository
	splitter TextSplitter

	embeddingBatchSize int
}

func NewIndexer(embedder embedding.Embedder, vectorRepo VectorRepository, splitter TextSplitter, embeddingBatchSize int) *Indexer {
	bs := embeddingBatchSize
	if bs <= 0 {
		bs = defaultEmbeddingBatch
	}
	return &Indexer{
		embedder:           embedder,
		vector:             vectorRepo,
		splitter:           splitter,
		embeddingBatchSize: bs,
	}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil && i.splitter != nil
}

// Reset 删除并重建集合
func (i *Indexer) Reset(ctx context.Context) error {
	if !i.Enabled() {
		return ErrVectorDisabled
	}
	if err := i.vector.DropCollection(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return i.vector.EnsureCollection(ctx)
}

// IndexDocuments 切分、嵌入并写入全部文档，返回写入的分片数
func (i *Indexer) IndexDocuments(ctx context.Context, docs []SourceDocument) (int, error) {
	if !i.Enabled() {
		return 0, ErrVectorDisabled
	}
	if err := i.vector.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	embedInputs := make([]string, 0, len(docs)*8)
	chunks := make([]*VectorChunk, 0, len(docs)*8)
	for _, doc := range docs {
		source := strings.TrimSpace(doc.Source)
		if source == "" {
			source = wfmodel.UnknownSource
		}
		title := strings.TrimSpace(doc.Title)

		parts := i.splitter.Split(doc.Content)
		if len(parts) == 0 {
			logger.Warn(ctx, "document has no content, skipped", "source", source)
			metrics.IngestDocumentsTotal.WithLabelValues("empty").Inc()
			continue
		}
		for idx, part := range parts {
			embedInputs = append(embedInputs, part)
			chunks = append(chunks, &VectorChunk{
				ID:         uuid.NewString(),
				Source:     source,
				Title:      title,
				ChunkIndex: int64(idx),
				Text:       part,
			})
		}
		metrics.IngestDocumentsTotal.WithLabelValues("ok").Inc()
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := i.embedBatch(ctx, embedInputs)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(chunks))
	}
	for idx := range chunks {
		chunks[idx].Vector = vectors[idx]
	}
	if err := i.vector.Insert(ctx, chunks); err != nil {
		return 0, err
	}
	metrics.IngestChunksTotal.Add(float64(len(chunks)))
	logger.Info(ctx, "documents indexed", "documents", len(docs), "chunks", len(chunks))
	return len(chunks), nil
}

func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += i.embeddingBatchSize {
		end := start + i.embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		v64, err := i.embedder.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		for _, vec := range v64 {
			out = append(out, toFloat32(vec))
		}
	}
	return out, nil
}
