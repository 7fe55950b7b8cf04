package dto

import (
	"time"

	"agentic-rag-api/internal/domain/entity"
)

// IngestRequest 入库请求；urls 为空时使用默认语料
type IngestRequest struct {
	URLs  []string `json:"urls,omitempty" binding:"omitempty,max=50,dive,required,url"`
	Reset bool     `json:"reset,omitempty"`
}

// IngestJobResponse 入库任务
type IngestJobResponse struct {
	ID           string     `json:"id"`
	URLs         []string   `json:"urls"`
	Reset        bool       `json:"reset"`
	Status       string     `json:"status"`
	Documents    int        `json:"documents"`
	Chunks       int        `json:"chunks"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ToIngestJobResponse 将领域实体转换为响应 DTO
func ToIngestJobResponse(j *entity.IngestJob) *IngestJobResponse {
	if j == nil {
		return nil
	}
	return &IngestJobResponse{
		ID:           j.ID,
		URLs:         []string(j.URLs),
		Reset:        j.Reset,
		Status:       string(j.Status),
		Documents:    j.Documents,
		Chunks:       j.Chunks,
		ErrorMessage: j.ErrorMessage,
		RetryCount:   j.RetryCount,
		DurationMs:   j.DurationMs,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
