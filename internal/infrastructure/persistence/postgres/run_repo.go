// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"agentic-rag-api/internal/domain/entity"
	"agentic-rag-api/internal/domain/repository"
)

// RunRepository 问答运行记录仓储实现
type RunRepository struct {
	client *Client
}

// NewRunRepository 创建运行记录仓储
func NewRunRepository(client *Client) *RunRepository {
	return &RunRepository{client: client}
}

// Create 写入一条运行记录
func (r *RunRepository) Create(ctx context.Context, run *entity.Run) error {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取运行记录
func (r *RunRepository) GetByID(ctx context.Context, id string) (*entity.Run, error) {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.GetByID")
	defer span.End()

	var run entity.Run
	if err := r.client.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// List 按创建时间倒序分页
func (r *RunRepository) List(ctx context.Context, filter *repository.RunFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Run], error) {
	ctx, span := tracer.Start(ctx, "postgres.RunRepository.List")
	defer span.End()

	query := r.client.db.WithContext(ctx).Model(&entity.Run{})
	if filter != nil && filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	var runs []*entity.Run
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&runs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return repository.NewPagedResult(runs, total, pagination), nil
}
