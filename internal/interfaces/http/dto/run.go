package dto

import (
	"time"

	"agentic-rag-api/internal/domain/entity"
)

// RunResponse 运行记录
type RunResponse struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id,omitempty"`
	Question      string    `json:"question"`
	Route         string    `json:"route,omitempty"`
	Outcome       string    `json:"outcome"`
	Generation    string    `json:"generation,omitempty"`
	Caveat        string    `json:"caveat,omitempty"`
	Generations   int       `json:"generations"`
	WebSearchUsed bool      `json:"web_search_used"`
	Sources       []string  `json:"sources"`
	ErrorStep     string    `json:"error_step,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// RunListResponse 运行记录列表
type RunListResponse struct {
	Runs []*RunResponse `json:"runs"`
}

// ToRunResponse 将领域实体转换为响应 DTO
func ToRunResponse(r *entity.Run) *RunResponse {
	if r == nil {
		return nil
	}
	sources := []string(r.Sources)
	if sources == nil {
		sources = []string{}
	}
	return &RunResponse{
		ID:            r.ID,
		RequestID:     r.RequestID,
		Question:      r.Question,
		Route:         r.Route,
		Outcome:       string(r.Outcome),
		Generation:    r.Generation,
		Caveat:        r.Caveat,
		Generations:   r.Generations,
		WebSearchUsed: r.WebSearchUsed,
		Sources:       sources,
		ErrorStep:     r.ErrorStep,
		ErrorMessage:  r.ErrorMessage,
		DurationMs:    r.DurationMs,
		CreatedAt:     r.CreatedAt,
	}
}

// ToRunListResponse 转换运行记录列表
func ToRunListResponse(runs []*entity.Run) *RunListResponse {
	resp := &RunListResponse{Runs: make([]*RunResponse, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, ToRunResponse(r))
	}
	return resp
}
