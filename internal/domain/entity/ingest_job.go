package entity

import (
	"time"

	"github.com/lib/pq"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IngestJob 文档入库任务
type IngestJob struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	URLs         pq.StringArray `json:"urls" gorm:"type:text[]"`
	Reset        bool           `json:"reset" gorm:"default:false"`
	Status       JobStatus      `json:"status" gorm:"type:varchar(32);index;default:'pending'"`
	Documents    int            `json:"documents" gorm:"default:0"`
	Chunks       int            `json:"chunks" gorm:"default:0"`
	ErrorMessage string         `json:"error_message,omitempty" gorm:"type:text"`
	RetryCount   int            `json:"retry_count" gorm:"default:0"`
	DurationMs   int64          `json:"duration_ms,omitempty"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (IngestJob) TableName() string {
	return "ingest_jobs"
}

// NewIngestJob 创建待执行的入库任务
func NewIngestJob(id string, urls []string, reset bool) *IngestJob {
	return &IngestJob{
		ID:        id,
		URLs:      pq.StringArray(urls),
		Reset:     reset,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}
}

// Start 开始执行任务；重投递时累加重试次数
func (j *IngestJob) Start() {
	now := time.Now()
	if j.StartedAt != nil {
		j.RetryCount++
	}
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.ErrorMessage = ""
}

// Complete 完成任务
func (j *IngestJob) Complete(documents, chunks int) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Documents = documents
	j.Chunks = chunks
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// Fail 任务失败
func (j *IngestJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// IsTerminal 任务是否已结束
func (j *IngestJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
