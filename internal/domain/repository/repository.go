// Package repository 运行记录与入库任务的持久化接口
package repository

import (
	"context"

	"agentic-rag-api/internal/domain/entity"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination 页码从 1 开始
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination 页码小于 1 取 1，页大小限制在 [1, 100]，未填取 20
func NewPagination(page, pageSize int) Pagination {
	p := Pagination{Page: max(page, 1), PageSize: pageSize}
	switch {
	case p.PageSize < 1:
		p.PageSize = defaultPageSize
	case p.PageSize > maxPageSize:
		p.PageSize = maxPageSize
	}
	return p
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

func (p Pagination) Limit() int { return p.PageSize }

// PagedResult 一页结果及总数
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPagedResult[T any](items []T, total int64, p Pagination) *PagedResult[T] {
	r := &PagedResult[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
	if p.PageSize > 0 {
		size := int64(p.PageSize)
		r.TotalPages = int((total + size - 1) / size)
	}
	return r
}

// RunFilter 运行记录过滤条件
type RunFilter struct {
	Outcome entity.RunOutcome
}

// RunRepository 问答运行记录仓储
type RunRepository interface {
	Create(ctx context.Context, run *entity.Run) error
	// GetByID 不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Run, error)
	List(ctx context.Context, filter *RunFilter, pagination Pagination) (*PagedResult[*entity.Run], error)
}

// IngestJobRepository 入库任务仓储
type IngestJobRepository interface {
	Create(ctx context.Context, job *entity.IngestJob) error
	// GetByID 不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.IngestJob, error)
	Update(ctx context.Context, job *entity.IngestJob) error
}
