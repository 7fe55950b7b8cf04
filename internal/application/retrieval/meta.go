package retrieval

import (
	"strings"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// toPassage 将向量检索结果转换为工作流片段；缺失 source 的历史数据记为 unknown
func toPassage(r *VectorSearchResult) wfmodel.Passage {
	md := map[string]any{
		wfmodel.MetaSource:     strings.TrimSpace(r.Source),
		wfmodel.MetaChunkIndex: r.ChunkIndex,
		wfmodel.MetaScore:      float64(r.Score),
	}
	if t := strings.TrimSpace(r.Title); t != "" {
		md[wfmodel.MetaTitle] = t
	}
	return wfmodel.NewPassage(strings.TrimSpace(r.ID), strings.TrimSpace(r.Text), md)
}
