// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/lib/pq"
)

// RunOutcome 问答运行结果
type RunOutcome string

const (
	RunOutcomeUseful    RunOutcome = "useful"
	RunOutcomeExhausted RunOutcome = "exhausted"
	RunOutcomeFailed    RunOutcome = "failed"
)

// Run 一次问答工作流运行记录
type Run struct {
	ID            string         `json:"id" gorm:"type:uuid;primaryKey"`
	RequestID     string         `json:"request_id,omitempty" gorm:"type:varchar(64);index"`
	Question      string         `json:"question" gorm:"type:text;not null"`
	Route         string         `json:"route,omitempty" gorm:"type:varchar(32)"`
	Outcome       RunOutcome     `json:"outcome" gorm:"type:varchar(32);index;not null"`
	Generation    string         `json:"generation,omitempty" gorm:"type:text"`
	Caveat        string         `json:"caveat,omitempty" gorm:"type:text"`
	Generations   int            `json:"generations" gorm:"default:0"`
	WebSearchUsed bool           `json:"web_search_used" gorm:"default:false"`
	Sources       pq.StringArray `json:"sources,omitempty" gorm:"type:text[]"`
	ErrorStep     string         `json:"error_step,omitempty" gorm:"type:varchar(32)"`
	ErrorMessage  string         `json:"error_message,omitempty" gorm:"type:text"`
	DurationMs    int64          `json:"duration_ms"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName 指定表名
func (Run) TableName() string {
	return "rag_runs"
}

// Failed 运行是否以致命错误结束
func (r *Run) Failed() bool {
	return r.Outcome == RunOutcomeFailed
}
