package step

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	wfmodel "agentic-rag-api/internal/workflow/model"
	workflowport "agentic-rag-api/internal/workflow/port"
)

// DefaultMaxResults 联网搜索默认返回条数
const DefaultMaxResults = 2

// WebSearch 联网搜索节点：所有结果合成为一个片段追加到 documents
type WebSearch struct {
	searcher   workflowport.WebSearcher
	maxResults int
}

func NewWebSearch(searcher workflowport.WebSearcher, maxResults int) *WebSearch {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &WebSearch{searcher: searcher, maxResults: maxResults}
}

func (s *WebSearch) Name() wfmodel.NodeName { return wfmodel.NodeWebSearch }

func (s *WebSearch) Run(ctx context.Context, st *wfmodel.State) (wfmodel.Update, error) {
	if s.searcher == nil {
		return wfmodel.Update{}, fmt.Errorf("web searcher not configured")
	}
	results, err := s.searcher.Search(ctx, st.Question, s.maxResults)
	if err != nil {
		return wfmodel.Update{}, err
	}
	return wfmodel.Update{
		Node:      wfmodel.NodeWebSearch,
		Documents: []wfmodel.Passage{SynthesizePassage(uuid.NewString(), results)},
		Merge:     wfmodel.MergeAppend,
	}, nil
}

// SynthesizePassage 将搜索结果正文以换行拼接为单个片段，URL 记录在 urls 元数据中
func SynthesizePassage(id string, results []wfmodel.SearchResult) wfmodel.Passage {
	contents := make([]string, 0, len(results))
	urls := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Content)
		if u := strings.TrimSpace(r.URL); u != "" {
			urls = append(urls, u)
		}
	}
	return wfmodel.NewPassage(id, strings.Join(contents, "\n"), map[string]any{
		wfmodel.MetaSource: wfmodel.WebSearchSource,
		wfmodel.MetaTitle:  wfmodel.WebSearchTitle,
		wfmodel.MetaURLs:   strings.Join(urls, ","),
	})
}
