package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentic-rag-api/internal/application/rag"
	"agentic-rag-api/internal/interfaces/http/dto"
	"agentic-rag-api/internal/workflow/graph"
	wfmodel "agentic-rag-api/internal/workflow/model"
	"agentic-rag-api/pkg/logger"
)

// RunIDHeader 流式响应在首个事件之前返回的运行 ID
const RunIDHeader = "X-Run-ID"

// AskService 问答服务
type AskService interface {
	Ask(ctx context.Context, req rag.AskRequest) (*wfmodel.State, error)
	Stream(ctx context.Context, req rag.AskRequest) (string, <-chan graph.Event)
}

// AskHandler 问答处理器
type AskHandler struct {
	svc AskService
}

// NewAskHandler 创建问答处理器
func NewAskHandler(svc AskService) *AskHandler {
	return &AskHandler{svc: svc}
}

// Ask 同步问答
// @Summary 问答
// @Description 运行自纠错检索增强工作流，返回最终回答与所依据的片段
// @Tags Ask
// @Accept json
// @Produce json
// @Param body body dto.AskRequest true "问题与检索参数"
// @Success 200 {object} dto.Response[dto.AskResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/ask [post]
func (h *AskHandler) Ask(c *gin.Context) {
	req, ok := bindAsk(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	st, err := h.svc.Ask(ctx, req)
	if err != nil {
		appErr, step := toAppError(err)
		logAskError(ctx, appErr.HTTPStatus, step, err)
		dto.AppError(c, appErr, step)
		return
	}
	dto.Success(c, dto.ToAskResponse(st))
}

// AskStream 流式问答：每个节点完成后推送 node 事件，最后推送 done 或 error
// @Summary 流式问答
// @Tags Ask
// @Accept json
// @Produce text/event-stream
// @Param body body dto.AskRequest true "问题与检索参数"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/ask/stream [post]
func (h *AskHandler) AskStream(c *gin.Context) {
	req, ok := bindAsk(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	runID, events := h.svc.Stream(ctx, req)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header(RunIDHeader, runID)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			switch {
			case ev.Update != nil:
				c.SSEvent("node", dto.ToNodeEvent(runID, ev.Update))
				return true
			case ev.Err != nil:
				appErr, step := toAppError(ev.Err)
				logAskError(ctx, appErr.HTTPStatus, step, ev.Err)
				c.SSEvent("error", &dto.StreamErrorEvent{
					RunID:     runID,
					Step:      step,
					Message:   appErr.Message,
					Details:   appErr.Detail,
					ErrorCode: string(appErr.Code),
				})
				return false
			case ev.Final != nil:
				c.SSEvent("done", dto.ToAskResponse(ev.Final))
				return false
			}
			return true
		case <-ctx.Done():
			logger.Debug(ctx, "ask stream client disconnected", "run_id", runID)
			return false
		}
	})
}

func bindAsk(c *gin.Context) (rag.AskRequest, bool) {
	var body dto.AskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return rag.AskRequest{}, false
	}
	body.Normalize()
	if body.Question == "" {
		dto.BadRequest(c, "question must not be empty")
		return rag.AskRequest{}, false
	}
	return rag.AskRequest{
		RequestID:       c.GetString("request_id"),
		Question:        body.Question,
		RetrievalConfig: body.ToRetrievalConfig(),
	}, true
}

func logAskError(ctx context.Context, status int, step string, err error) {
	if status < http.StatusInternalServerError {
		logger.Warn(ctx, "ask rejected", "step", step, "error", err.Error())
		return
	}
	logger.Error(ctx, "ask failed", err, "step", step)
}
