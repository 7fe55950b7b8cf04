package milvus

import (
	"context"

	"agentic-rag-api/internal/application/retrieval"
)

type RetrievalVectorRepository struct {
	repo *Repository
}

func NewRetrievalVectorRepository(repo *Repository) *RetrievalVectorRepository {
	return &RetrievalVectorRepository{repo: repo}
}

var _ retrieval.VectorRepository = (*RetrievalVectorRepository)(nil)

func (r *RetrievalVectorRepository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.EnsureCollection(ctx)
}

func (r *RetrievalVectorRepository) DropCollection(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.DropCollection(ctx)
}

func (r *RetrievalVectorRepository) Search(ctx context.Context, params *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := r.repo.Search(ctx, &SearchParams{
		QueryVector: params.QueryVector,
		TopK:        params.TopK,
		WithVectors: params.WithVectors,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*retrieval.VectorSearchResult, 0, len(out))
	for _, v := range out {
		if v == nil {
			continue
		}
		results = append(results, &retrieval.VectorSearchResult{
			ID:         v.ID,
			Score:      v.Score,
			Source:     v.Source,
			Title:      v.Title,
			ChunkIndex: v.ChunkIndex,
			Text:       v.TextContent,
			Vector:     v.Vector,
		})
	}
	return results, nil
}

func (r *RetrievalVectorRepository) Insert(ctx context.Context, chunks []*retrieval.VectorChunk) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	if len(chunks) == 0 {
		return nil
	}

	out := make([]*Passage, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		out = append(out, &Passage{
			ID:          c.ID,
			Vector:      c.Vector,
			Source:      c.Source,
			Title:       c.Title,
			ChunkIndex:  c.ChunkIndex,
			TextContent: c.Text,
		})
	}
	return r.repo.Insert(ctx, out)
}
