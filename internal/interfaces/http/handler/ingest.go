package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"agentic-rag-api/internal/domain/entity"
	"agentic-rag-api/internal/interfaces/http/dto"
	apperrors "agentic-rag-api/pkg/errors"
	"agentic-rag-api/pkg/logger"
)

// IngestService 入库任务
type IngestService interface {
	Enqueue(ctx context.Context, urls []string, reset bool) (*entity.IngestJob, error)
	GetJob(ctx context.Context, id string) (*entity.IngestJob, error)
}

// IngestHandler 入库处理器
type IngestHandler struct {
	svc IngestService
}

// NewIngestHandler 创建入库处理器
func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

// Enqueue 创建入库任务并投递到队列，由 ingest-worker 异步执行
// @Summary 创建入库任务
// @Tags Ingest
// @Accept json
// @Produce json
// @Param body body dto.IngestRequest false "文档 URL 列表"
// @Success 202 {object} dto.Response[dto.IngestJobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/ingest [post]
func (h *IngestHandler) Enqueue(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	job, err := h.svc.Enqueue(ctx, req.URLs, req.Reset)
	if err != nil {
		appErr, _ := toAppError(err)
		if appErr.Code == apperrors.CodeInternalError {
			appErr = apperrors.Wrap(err, apperrors.CodeQueueError, "failed to enqueue ingest job")
			logger.Error(ctx, "failed to enqueue ingest job", err)
		}
		dto.AppError(c, appErr, "")
		return
	}
	dto.Accepted(c, dto.ToIngestJobResponse(job))
}

// GetJob 查询入库任务状态
// @Summary 入库任务详情
// @Tags Ingest
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.IngestJobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/ingest/{id} [get]
func (h *IngestHandler) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := dto.BindUUIDParam(c, "id")
	if !ok {
		dto.BadRequest(c, "invalid job id")
		return
	}

	job, err := h.svc.GetJob(ctx, id)
	if err != nil {
		appErr, _ := toAppError(err)
		if appErr.Code == apperrors.CodeInternalError {
			logger.Error(ctx, "failed to get ingest job", err)
		}
		dto.AppError(c, appErr, "")
		return
	}
	if job == nil {
		dto.AppError(c, apperrors.ErrJobNotFound, "")
		return
	}
	dto.Success(c, dto.ToIngestJobResponse(job))
}
