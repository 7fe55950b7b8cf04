package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"agentic-rag-api/internal/domain/entity"
	"agentic-rag-api/internal/domain/repository"
	"agentic-rag-api/internal/interfaces/http/dto"
	apperrors "agentic-rag-api/pkg/errors"
	"agentic-rag-api/pkg/logger"
)

// RunService 运行历史查询
type RunService interface {
	GetRun(ctx context.Context, id string) (*entity.Run, error)
	ListRuns(ctx context.Context, filter *repository.RunFilter, p repository.Pagination) (*repository.PagedResult[*entity.Run], error)
}

// RunHandler 运行历史处理器
type RunHandler struct {
	svc RunService
}

// NewRunHandler 创建运行历史处理器
func NewRunHandler(svc RunService) *RunHandler {
	return &RunHandler{svc: svc}
}

// ListRuns 分页列出运行记录（按创建时间倒序）
// @Summary 运行记录列表
// @Tags Runs
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param outcome query string false "useful / exhausted / failed"
// @Success 200 {object} dto.Response[dto.RunListResponse]
// @Router /v1/runs [get]
func (h *RunHandler) ListRuns(c *gin.Context) {
	ctx := c.Request.Context()

	var filter *repository.RunFilter
	if outcome := c.Query("outcome"); outcome != "" {
		switch entity.RunOutcome(outcome) {
		case entity.RunOutcomeUseful, entity.RunOutcomeExhausted, entity.RunOutcomeFailed:
			filter = &repository.RunFilter{Outcome: entity.RunOutcome(outcome)}
		default:
			dto.BadRequest(c, "invalid outcome: "+outcome)
			return
		}
	}

	page := dto.BindPage(c).Pagination()
	result, err := h.svc.ListRuns(ctx, filter, page)
	if err != nil {
		h.fail(c, "failed to list runs", err)
		return
	}
	dto.SuccessWithPage(c, result, dto.ToRunListResponse)
}

// GetRun 查询单条运行记录
// @Summary 运行记录详情
// @Tags Runs
// @Produce json
// @Param id path string true "运行 ID"
// @Success 200 {object} dto.Response[dto.RunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/runs/{id} [get]
func (h *RunHandler) GetRun(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := dto.BindUUIDParam(c, "id")
	if !ok {
		dto.BadRequest(c, "invalid run id")
		return
	}

	run, err := h.svc.GetRun(ctx, id)
	if err != nil {
		h.fail(c, "failed to get run", err)
		return
	}
	if run == nil {
		dto.AppError(c, apperrors.ErrRunNotFound, "")
		return
	}
	dto.Success(c, dto.ToRunResponse(run))
}

func (h *RunHandler) fail(c *gin.Context, msg string, err error) {
	appErr, _ := toAppError(err)
	if appErr.Code == apperrors.CodeInternalError {
		logger.Error(c.Request.Context(), msg, err)
	}
	dto.AppError(c, appErr, "")
}
