package dto

import (
	"strings"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// RetrievalOptions 单次问答的检索参数，留空使用服务端默认值
type RetrievalOptions struct {
	SearchType     string   `json:"search_type,omitempty" binding:"omitempty,oneof=similarity mmr diversity"`
	K              int      `json:"k,omitempty" binding:"omitempty,min=1,max=50"`
	FetchK         int      `json:"fetch_k,omitempty" binding:"omitempty,min=1,max=200"`
	LambdaMult     *float64 `json:"lambda_mult,omitempty" binding:"omitempty,min=0,max=1"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty" binding:"omitempty,min=0,max=1"`
}

// AskRequest 问答请求
type AskRequest struct {
	Question  string            `json:"question" binding:"required,max=4000"`
	Retrieval *RetrievalOptions `json:"retrieval,omitempty"`
}

// Normalize 去除首尾空白
func (r *AskRequest) Normalize() {
	r.Question = strings.TrimSpace(r.Question)
}

// ToRetrievalConfig 转换为工作流检索参数
func (r *AskRequest) ToRetrievalConfig() *wfmodel.RetrievalConfig {
	if r == nil || r.Retrieval == nil {
		return nil
	}
	o := r.Retrieval
	return &wfmodel.RetrievalConfig{
		SearchType:     wfmodel.SearchMethod(strings.ToLower(strings.TrimSpace(o.SearchType))),
		K:              o.K,
		FetchK:         o.FetchK,
		LambdaMult:     o.LambdaMult,
		ScoreThreshold: o.ScoreThreshold,
	}
}

// DocumentResponse 回答所依据的上下文片段
type DocumentResponse struct {
	ID       string            `json:"id,omitempty"`
	Source   string            `json:"source"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AskResponse 问答结果
type AskResponse struct {
	RunID         string              `json:"run_id"`
	Question      string              `json:"question"`
	Route         string              `json:"route,omitempty"`
	Generation    string              `json:"generation"`
	Outcome       string              `json:"outcome"`
	Caveat        string              `json:"caveat,omitempty"`
	Generations   int                 `json:"generations"`
	WebSearchUsed bool                `json:"web_search_used"`
	Documents     []*DocumentResponse `json:"documents"`
}

// ToDocumentResponses 转换上下文片段
func ToDocumentResponses(docs []wfmodel.Passage) []*DocumentResponse {
	out := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, &DocumentResponse{
			ID:       d.ID,
			Source:   d.Source(),
			Title:    d.Title(),
			Content:  d.Content,
			Metadata: d.MetadataStrings(),
		})
	}
	return out
}

// ToAskResponse 将终态转换为响应
func ToAskResponse(st *wfmodel.State) *AskResponse {
	if st == nil {
		return nil
	}
	return &AskResponse{
		RunID:         st.RunID,
		Question:      st.Question,
		Route:         string(st.Route),
		Generation:    st.Generation,
		Outcome:       string(st.Outcome),
		Caveat:        st.Caveat,
		Generations:   st.Generations,
		WebSearchUsed: st.WebSearches > 0,
		Documents:     ToDocumentResponses(st.Documents),
	}
}

// NodeEvent 流式问答中单个节点完成后的增量（SSE event: node）
type NodeEvent struct {
	RunID          string  `json:"run_id"`
	Node           string  `json:"node"`
	DocumentsAdded int     `json:"documents_added"`
	DocumentsKept  *int    `json:"documents_kept,omitempty"`
	WebSearch      *bool   `json:"web_search,omitempty"`
	Generation     *string `json:"generation,omitempty"`
}

// ToNodeEvent 转换节点增量；grade_documents 以过滤后的数量表示
func ToNodeEvent(runID string, u *wfmodel.Update) *NodeEvent {
	ev := &NodeEvent{
		RunID:      runID,
		Node:       string(u.Node),
		WebSearch:  u.WebSearch,
		Generation: u.Generation,
	}
	switch u.Merge {
	case wfmodel.MergeAppend:
		ev.DocumentsAdded = len(u.Documents)
	case wfmodel.MergeReplace:
		kept := len(u.Documents)
		ev.DocumentsKept = &kept
	}
	return ev
}

// StreamErrorEvent 致命错误（SSE event: error）
type StreamErrorEvent struct {
	RunID     string `json:"run_id"`
	Step      string `json:"step,omitempty"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}
