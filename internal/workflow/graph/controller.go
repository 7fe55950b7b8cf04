package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agentic-rag-api/pkg/logger"
	"agentic-rag-api/pkg/metrics"
	"agentic-rag-api/pkg/tracer"

	wfmodel "agentic-rag-api/internal/workflow/model"
	"agentic-rag-api/internal/workflow/step"
)

// DefaultMaxGenerations 单次运行 generate 节点的执行上限
const DefaultMaxGenerations = 3

// Router 路由判定
type Router interface {
	Route(ctx context.Context, question string) (wfmodel.RouteVerdict, error)
}

// GenerationChecker 生成结果的事实性/有用性复合检查
type GenerationChecker interface {
	Check(ctx context.Context, question string, docs []wfmodel.Passage, generation string) (wfmodel.GenerationGrade, error)
}

// Deps 控制器依赖，全部在进程启动时构建一次
type Deps struct {
	Router         Router
	Checker        GenerationChecker
	Retrieve       step.Step
	GradeDocuments step.Step
	WebSearch      step.Step
	Generate       step.Step
}

type Config struct {
	MaxGenerations int
}

// Input 调用方输入
type Input struct {
	RunID           string
	Question        string
	RetrievalConfig *wfmodel.RetrievalConfig
}

// UpdateFunc 每个节点完成后回调；返回错误将终止运行
type UpdateFunc func(ctx context.Context, u wfmodel.Update) error

type Controller struct {
	router         Router
	checker        GenerationChecker
	steps          map[wfmodel.NodeName]step.Step
	table          Table
	maxGenerations int
}

// New 校验转移表与依赖并创建控制器
func New(deps Deps, cfg Config) (*Controller, error) {
	if err := Transitions.Validate(Emits); err != nil {
		return nil, fmt.Errorf("invalid transition table: %w", err)
	}
	if deps.Router == nil {
		return nil, errors.New("router is required")
	}
	if deps.Checker == nil {
		return nil, errors.New("generation checker is required")
	}

	steps := make(map[wfmodel.NodeName]step.Step, 4)
	for _, s := range []step.Step{deps.Retrieve, deps.GradeDocuments, deps.WebSearch, deps.Generate} {
		if s == nil {
			return nil, errors.New("all four steps are required")
		}
		steps[s.Name()] = s
	}
	for node := range Emits {
		if node == Entry {
			continue
		}
		if _, ok := steps[node]; !ok {
			return nil, fmt.Errorf("no step registered for node %q", node)
		}
	}

	maxGen := cfg.MaxGenerations
	if maxGen <= 0 {
		maxGen = DefaultMaxGenerations
	}
	return &Controller{
		router:         deps.Router,
		checker:        deps.Checker,
		steps:          steps,
		table:          Transitions,
		maxGenerations: maxGen,
	}, nil
}

// MaxGenerations 返回生效的生成上限
func (c *Controller) MaxGenerations() int {
	return c.maxGenerations
}

// Run 运行到终态，仅返回最终状态
func (c *Controller) Run(ctx context.Context, in Input) (*wfmodel.State, error) {
	return c.Execute(ctx, in, nil)
}

// Execute 逐节点执行状态机；onUpdate 在每个节点完成并合并后、选择下一跳之前被调用
func (c *Controller) Execute(ctx context.Context, in Input, onUpdate UpdateFunc) (*wfmodel.State, error) {
	start := time.Now()
	ctx = logger.WithContext(ctx, logger.RunIDKey, in.RunID)
	ctx, span := tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("run.id", in.RunID),
	))
	defer span.End()

	st, err := c.execute(ctx, in, onUpdate)
	if err != nil {
		tracer.RecordError(span, err)
		logger.Error(ctx, "workflow run failed", err, "step", stepOf(err))
		c.observeRun(wfmodel.OutcomeFailed, start)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("run.outcome", string(st.Outcome)),
		attribute.Int("run.generations", st.Generations),
	)
	logger.Info(ctx, "workflow run finished",
		"outcome", st.Outcome,
		"generations", st.Generations,
		"web_searches", st.WebSearches,
		"documents", len(st.Documents),
	)
	c.observeRun(st.Outcome, start)
	metrics.WorkflowGenerations.Observe(float64(st.Generations))
	return st, nil
}

func (c *Controller) execute(ctx context.Context, in Input, onUpdate UpdateFunc) (*wfmodel.State, error) {
	st, err := wfmodel.NewState(in.RunID, in.Question, in.RetrievalConfig)
	if err != nil {
		return nil, &RunError{RunID: in.RunID, Question: in.Question, Step: StepInput, Err: err}
	}
	fail := func(step string, err error) (*wfmodel.State, error) {
		return nil, &RunError{RunID: st.RunID, Question: st.Question, Step: step, Err: err}
	}

	route, err := c.router.Route(ctx, st.Question)
	if err != nil {
		return fail(StepRoute, err)
	}
	st.Route = route

	next, err := c.transition(ctx, Entry, Decision(route))
	if err != nil {
		return fail(StepRoute, err)
	}

	for next != End {
		node := next
		if err := ctx.Err(); err != nil {
			return fail(string(node), err)
		}

		u, err := c.runNode(ctx, node, st)
		if err != nil {
			return fail(string(node), err)
		}
		st.Apply(u)
		if onUpdate != nil {
			if err := onUpdate(ctx, u); err != nil {
				return fail(string(node), err)
			}
		}

		decision, failedStep, err := c.decide(ctx, node, st)
		if err != nil {
			return fail(failedStep, err)
		}
		if next, err = c.transition(ctx, node, decision); err != nil {
			return fail(string(node), err)
		}
		if next == End {
			c.finish(st, decision)
		}
	}
	return st, nil
}

func (c *Controller) runNode(ctx context.Context, node wfmodel.NodeName, st *wfmodel.State) (wfmodel.Update, error) {
	s := c.steps[node]
	ctx, span := tracer.Start(ctx, "workflow.node."+string(node))
	defer span.End()

	start := time.Now()
	logger.Debug(ctx, "node started", "node", node, "documents", len(st.Documents))
	u, err := s.Run(ctx, st)
	metrics.WorkflowNodeDuration.WithLabelValues(string(node)).Observe(time.Since(start).Seconds())
	if err != nil {
		tracer.RecordError(span, err)
		metrics.WorkflowNodeTotal.WithLabelValues(string(node), "error").Inc()
		return wfmodel.Update{}, err
	}
	u.Node = node
	metrics.WorkflowNodeTotal.WithLabelValues(string(node), "ok").Inc()
	logger.Debug(ctx, "node finished", "node", node, "documents_out", len(u.Documents), "duration_ms", time.Since(start).Milliseconds())
	return u, nil
}

// decide 计算节点完成后的判定；失败时同时返回失败步骤名
func (c *Controller) decide(ctx context.Context, node wfmodel.NodeName, st *wfmodel.State) (Decision, string, error) {
	switch node {
	case wfmodel.NodeRetrieve, wfmodel.NodeWebSearch:
		return DecisionAlways, "", nil
	case wfmodel.NodeGradeDocuments:
		if st.WebSearch {
			return DecisionEscalate, "", nil
		}
		return DecisionGenerate, "", nil
	case wfmodel.NodeGenerate:
		grade, err := c.checker.Check(ctx, st.Question, st.Documents, st.Generation)
		if err != nil {
			return "", StepGradeGeneration, err
		}
		if grade != wfmodel.GradeUseful && st.Generations >= c.maxGenerations {
			logger.Warn(ctx, "generation budget exhausted",
				"grade", grade,
				"generations", st.Generations,
				"max_generations", c.maxGenerations,
			)
			return DecisionExhausted, "", nil
		}
		return Decision(grade), "", nil
	}
	return "", string(node), fmt.Errorf("unknown node %q", node)
}

func (c *Controller) transition(ctx context.Context, from wfmodel.NodeName, d Decision) (wfmodel.NodeName, error) {
	to, err := c.table.Next(from, d)
	if err != nil {
		return "", err
	}
	metrics.WorkflowTransitionsTotal.WithLabelValues(string(from), string(d)).Inc()
	logger.Info(ctx, "workflow transition", "node", from, "decision", d, "next", to)
	return to, nil
}

func (c *Controller) finish(st *wfmodel.State, d Decision) {
	switch d {
	case DecisionExhausted:
		st.Outcome = wfmodel.OutcomeExhausted
		st.Caveat = wfmodel.ExhaustedCaveat
	default:
		st.Outcome = wfmodel.OutcomeUseful
	}
}

func (c *Controller) observeRun(outcome wfmodel.Outcome, start time.Time) {
	metrics.WorkflowRunsTotal.WithLabelValues(string(outcome)).Inc()
	metrics.WorkflowRunDuration.WithLabelValues(string(outcome)).Observe(time.Since(start).Seconds())
}

func stepOf(err error) string {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Step
	}
	return ""
}
