// Package rag 问答应用服务：运行工作流并记录运行历史
package rag

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"agentic-rag-api/internal/domain/entity"
	"agentic-rag-api/internal/domain/repository"
	"agentic-rag-api/internal/workflow/graph"
	wfmodel "agentic-rag-api/internal/workflow/model"
	"agentic-rag-api/pkg/logger"
)

// ErrHistoryDisabled 未开启运行历史
var ErrHistoryDisabled = errors.New("run history is disabled")

// Workflow 工作流控制器
type Workflow interface {
	Run(ctx context.Context, in graph.Input) (*wfmodel.State, error)
	Stream(ctx context.Context, in graph.Input) <-chan graph.Event
}

// AskRequest 问答请求
type AskRequest struct {
	RequestID       string
	Question        string
	RetrievalConfig *wfmodel.RetrievalConfig
}

// Service 问答服务
type Service struct {
	workflow Workflow
	runs     repository.RunRepository
	newID    func() string
}

// NewService 创建问答服务；runs 为 nil 时不记录历史
func NewService(workflow Workflow, runs repository.RunRepository) *Service {
	return &Service{
		workflow: workflow,
		runs:     runs,
		newID:    uuid.NewString,
	}
}

// HistoryEnabled 是否记录运行历史
func (s *Service) HistoryEnabled() bool {
	return s.runs != nil
}

// Ask 同步运行工作流直到终态
func (s *Service) Ask(ctx context.Context, req AskRequest) (*wfmodel.State, error) {
	in := s.input(req)
	start := time.Now()

	st, err := s.workflow.Run(ctx, in)
	s.record(ctx, req, in.RunID, st, err, start)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Stream 流式运行：原样转发控制器事件，终止事件到达后记录运行历史。
// 返回的 runID 在首个事件之前即可用于响应头。
func (s *Service) Stream(ctx context.Context, req AskRequest) (string, <-chan graph.Event) {
	in := s.input(req)
	start := time.Now()
	src := s.workflow.Stream(ctx, in)

	out := make(chan graph.Event)
	go func() {
		defer close(out)
		for ev := range src {
			if ev.Terminal() {
				s.record(ctx, req, in.RunID, ev.Final, ev.Err, start)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				// 继续消费 src 直到其关闭，避免生产者阻塞
				for ev := range src {
					if ev.Terminal() {
						s.record(ctx, req, in.RunID, ev.Final, ev.Err, start)
					}
				}
				return
			}
		}
	}()
	return in.RunID, out
}

// GetRun 查询单条运行记录
func (s *Service) GetRun(ctx context.Context, id string) (*entity.Run, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.GetByID(ctx, id)
}

// ListRuns 分页查询运行记录
func (s *Service) ListRuns(ctx context.Context, filter *repository.RunFilter, p repository.Pagination) (*repository.PagedResult[*entity.Run], error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.List(ctx, filter, p)
}

func (s *Service) input(req AskRequest) graph.Input {
	return graph.Input{
		RunID:           s.newID(),
		Question:        req.Question,
		RetrievalConfig: req.RetrievalConfig,
	}
}

// record 记录失败不影响问答结果；使用脱离取消的 ctx 以便客户端断开后仍能落库
func (s *Service) record(ctx context.Context, req AskRequest, runID string, st *wfmodel.State, runErr error, start time.Time) {
	if s.runs == nil {
		return
	}
	run := BuildRun(runID, req, st, runErr, time.Since(start))
	if err := s.runs.Create(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn(ctx, "failed to record run", "run_id", runID, "error", err.Error())
	}
}

// BuildRun 将终态（或致命错误）转换为运行记录
func BuildRun(runID string, req AskRequest, st *wfmodel.State, runErr error, elapsed time.Duration) *entity.Run {
	run := &entity.Run{
		ID:         runID,
		RequestID:  req.RequestID,
		Question:   req.Question,
		DurationMs: elapsed.Milliseconds(),
	}
	if runErr != nil {
		run.Outcome = entity.RunOutcomeFailed
		run.ErrorMessage = runErr.Error()
		var re *graph.RunError
		if errors.As(runErr, &re) {
			run.ErrorStep = re.Step
			if re.Err != nil {
				run.ErrorMessage = re.Err.Error()
			}
		}
		return run
	}
	if st == nil {
		run.Outcome = entity.RunOutcomeFailed
		return run
	}

	run.Question = st.Question
	run.Route = string(st.Route)
	run.Outcome = entity.RunOutcome(st.Outcome)
	run.Generation = st.Generation
	run.Caveat = st.Caveat
	run.Generations = st.Generations
	run.WebSearchUsed = st.WebSearches > 0
	run.Sources = st.Sources()
	return run
}
