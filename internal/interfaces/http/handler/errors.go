// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"

	"agentic-rag-api/internal/application/rag"
	"agentic-rag-api/internal/application/retrieval"
	"agentic-rag-api/internal/workflow/grader"
	"agentic-rag-api/internal/workflow/graph"
	wfmodel "agentic-rag-api/internal/workflow/model"
	wfnode "agentic-rag-api/internal/workflow/node"
	apperrors "agentic-rag-api/pkg/errors"
)

// toAppError 将服务层错误转换为 AppError，同时返回失败步骤（非工作流错误为空）
func toAppError(err error) (*apperrors.AppError, string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr, ""
	}

	var runErr *graph.RunError
	step := ""
	cause := err
	if errors.As(err, &runErr) {
		step = runErr.Step
		cause = runErr.Err
	}

	switch {
	case errors.Is(cause, wfmodel.ErrEmptyQuestion):
		return apperrors.New(apperrors.CodeInvalidParam, "question must not be empty"), step
	case errors.Is(cause, retrieval.ErrInvalidOptions):
		return apperrors.New(apperrors.CodeInvalidParam, "invalid retrieval options").WithDetail(cause.Error()), step
	case errors.Is(cause, rag.ErrInvalidURL), errors.Is(cause, rag.ErrNoURLs):
		return apperrors.New(apperrors.CodeInvalidParam, cause.Error()), step
	case errors.Is(cause, rag.ErrHistoryDisabled),
		errors.Is(cause, rag.ErrIngestDisabled),
		errors.Is(cause, rag.ErrIndexerDisabled):
		return apperrors.New(apperrors.CodeServiceUnavailable, cause.Error()), step
	case errors.Is(cause, retrieval.ErrVectorDisabled):
		return apperrors.New(apperrors.CodeVectorDBError, "vector retrieval is unavailable").WithError(err), step
	case errors.Is(cause, grader.ErrGenerationFormat), errors.Is(cause, wfnode.ErrEmptyOutput):
		return apperrors.New(apperrors.CodeLLMOutputInvalid, "model output did not match the expected format").
			WithDetail(cause.Error()).WithError(err), step
	case errors.Is(cause, context.DeadlineExceeded):
		return apperrors.New(apperrors.CodeServiceUnavailable, "request timed out").WithError(err), step
	}

	if runErr == nil {
		return apperrors.New(apperrors.CodeInternalError, "internal server error").WithError(err), ""
	}
	return runStepError(step).WithDetail(cause.Error()).WithError(err), step
}

// runStepError 按失败步骤给出业务错误码
func runStepError(step string) *apperrors.AppError {
	switch step {
	case string(wfmodel.NodeRetrieve):
		return apperrors.New(apperrors.CodeRetrievalFailed, "document retrieval failed")
	case string(wfmodel.NodeWebSearch):
		return apperrors.New(apperrors.CodeWebSearchFailed, "web search failed")
	case string(wfmodel.NodeGenerate):
		return apperrors.New(apperrors.CodeGenerationFailed, "answer generation failed")
	case graph.StepInput:
		return apperrors.New(apperrors.CodeInvalidParam, "invalid question")
	default:
		return apperrors.New(apperrors.CodeLLMCallFailed, "grading call failed")
	}
}
