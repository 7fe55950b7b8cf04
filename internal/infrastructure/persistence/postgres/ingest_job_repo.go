package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"agentic-rag-api/internal/domain/entity"
)

// IngestJobRepository 入库任务仓储实现
type IngestJobRepository struct {
	client *Client
}

// NewIngestJobRepository 创建入库任务仓储
func NewIngestJobRepository(client *Client) *IngestJobRepository {
	return &IngestJobRepository{client: client}
}

// Create 创建任务
func (r *IngestJobRepository) Create(ctx context.Context, job *entity.IngestJob) error {
	ctx, span := tracer.Start(ctx, "postgres.IngestJobRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create ingest job: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务
func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*entity.IngestJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.IngestJobRepository.GetByID")
	defer span.End()

	var job entity.IngestJob
	if err := r.client.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get ingest job: %w", err)
	}
	return &job, nil
}

// Update 保存任务全部字段
func (r *IngestJobRepository) Update(ctx context.Context, job *entity.IngestJob) error {
	ctx, span := tracer.Start(ctx, "postgres.IngestJobRepository.Update")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Save(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update ingest job: %w", err)
	}
	return nil
}
