package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag-api/internal/application/rag"
	"agentic-rag-api/internal/application/retrieval"
	"agentic-rag-api/internal/domain/entity"
	"agentic-rag-api/internal/domain/repository"
	"agentic-rag-api/internal/workflow/grader"
	"agentic-rag-api/internal/workflow/graph"
	wfmodel "agentic-rag-api/internal/workflow/model"
	apperrors "agentic-rag-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// closeNotifyRecorder gin 的 Stream 需要 http.CloseNotifier
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool {
	return r.closed
}

type fakeAsk struct {
	state  *wfmodel.State
	err    error
	events []graph.Event
	got    rag.AskRequest
}

func (f *fakeAsk) Ask(_ context.Context, req rag.AskRequest) (*wfmodel.State, error) {
	f.got = req
	return f.state, f.err
}

func (f *fakeAsk) Stream(_ context.Context, req rag.AskRequest) (string, <-chan graph.Event) {
	f.got = req
	ch := make(chan graph.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return "run-stream", ch
}

type fakeRuns struct {
	run     *entity.Run
	page    *repository.PagedResult[*entity.Run]
	err     error
	filter  *repository.RunFilter
	pageArg repository.Pagination
}

func (f *fakeRuns) GetRun(context.Context, string) (*entity.Run, error) {
	return f.run, f.err
}

func (f *fakeRuns) ListRuns(_ context.Context, filter *repository.RunFilter, p repository.Pagination) (*repository.PagedResult[*entity.Run], error) {
	f.filter = filter
	f.pageArg = p
	return f.page, f.err
}

type fakeIngest struct {
	job      *entity.IngestJob
	err      error
	gotURLs  []string
	gotReset bool
}

func (f *fakeIngest) Enqueue(_ context.Context, urls []string, reset bool) (*entity.IngestJob, error) {
	f.gotURLs = urls
	f.gotReset = reset
	return f.job, f.err
}

func (f *fakeIngest) GetJob(context.Context, string) (*entity.IngestJob, error) {
	return f.job, f.err
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func newEngine(ask AskService, runs RunService, ingest IngestService) *gin.Engine {
	e := gin.New()
	if ask != nil {
		h := NewAskHandler(ask)
		e.POST("/v1/ask", h.Ask)
		e.POST("/v1/ask/stream", h.AskStream)
	}
	if runs != nil {
		h := NewRunHandler(runs)
		e.GET("/v1/runs", h.ListRuns)
		e.GET("/v1/runs/:id", h.GetRun)
	}
	if ingest != nil {
		h := NewIngestHandler(ingest)
		e.POST("/v1/ingest", h.Enqueue)
		e.GET("/v1/ingest/:id", h.GetJob)
	}
	return e
}

func do(t *testing.T, e *gin.Engine, method, path, body string) *closeNotifyRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := newRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *closeNotifyRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	detail, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error detail: %v", body)
	code, _ := detail["error_code"].(string)
	return code
}

func usefulState() *wfmodel.State {
	return &wfmodel.State{
		RunID:    "run-1",
		Question: "What is task decomposition?",
		Route:    wfmodel.RouteVectorstore,
		Documents: []wfmodel.Passage{
			wfmodel.NewPassage("d1", "Task decomposition splits work.", map[string]any{
				wfmodel.MetaSource: "https://example.com/agents",
				wfmodel.MetaTitle:  "Agents",
			}),
		},
		Generation:  "It splits a task into steps.",
		Generations: 1,
		Outcome:     wfmodel.OutcomeUseful,
	}
}

func TestAsk_ReturnsFinalAnswer(t *testing.T) {
	svc := &fakeAsk{state: usefulState()}
	e := newEngine(svc, nil, nil)

	rec := do(t, e, http.MethodPost, "/v1/ask",
		`{"question":"  What is task decomposition?  ","retrieval":{"search_type":"diversity","k":4,"lambda_mult":0.25}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "What is task decomposition?", svc.got.Question)
	require.NotNil(t, svc.got.RetrievalConfig)
	assert.Equal(t, wfmodel.SearchDiversity, svc.got.RetrievalConfig.SearchType)
	assert.Equal(t, 4, svc.got.RetrievalConfig.K)
	assert.InDelta(t, 0.25, *svc.got.RetrievalConfig.LambdaMult, 1e-9)

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "run-1", data["run_id"])
	assert.Equal(t, "useful", data["outcome"])
	assert.Equal(t, "It splits a task into steps.", data["generation"])
	assert.Equal(t, false, data["web_search_used"])
	docs := data["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "https://example.com/agents", docs[0].(map[string]any)["source"])
}

func TestAsk_RejectsBadInput(t *testing.T) {
	e := newEngine(&fakeAsk{state: usefulState()}, nil, nil)

	cases := map[string]string{
		"missing question": `{}`,
		"blank question":   `{"question":"   "}`,
		"bad search type":  `{"question":"q","retrieval":{"search_type":"bm25"}}`,
		"lambda too big":   `{"question":"q","retrieval":{"lambda_mult":1.5}}`,
		"malformed json":   `{"question":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, e, http.MethodPost, "/v1/ask", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAsk_MapsRunErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
		step   string
	}{
		{
			name:   "web search failure",
			err:    &graph.RunError{Step: string(wfmodel.NodeWebSearch), Err: errors.New("tavily unreachable")},
			status: http.StatusBadGateway,
			code:   apperrors.CodeWebSearchFailed,
			step:   "web_search",
		},
		{
			name:   "grader format violation",
			err:    &graph.RunError{Step: graph.StepGradeGeneration, Err: fmt.Errorf("hallucination grader: %w", grader.ErrGenerationFormat)},
			status: http.StatusBadGateway,
			code:   apperrors.CodeLLMOutputInvalid,
			step:   graph.StepGradeGeneration,
		},
		{
			name:   "invalid retrieval options",
			err:    &graph.RunError{Step: string(wfmodel.NodeRetrieve), Err: fmt.Errorf("%w: fetch_k < k", retrieval.ErrInvalidOptions)},
			status: http.StatusBadRequest,
			code:   apperrors.CodeInvalidParam,
			step:   "retrieve",
		},
		{
			name:   "router call failure",
			err:    &graph.RunError{Step: graph.StepRoute, Err: errors.New("connection reset")},
			status: http.StatusBadGateway,
			code:   apperrors.CodeLLMCallFailed,
			step:   graph.StepRoute,
		},
		{
			name:   "generate failure",
			err:    &graph.RunError{Step: string(wfmodel.NodeGenerate), Err: errors.New("boom")},
			status: http.StatusInternalServerError,
			code:   apperrors.CodeGenerationFailed,
			step:   "generate",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine(&fakeAsk{err: tc.err}, nil, nil)
			rec := do(t, e, http.MethodPost, "/v1/ask", `{"question":"q"}`)
			assert.Equal(t, tc.status, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, string(tc.code), errorCode(t, body))
			assert.Equal(t, tc.step, body["error"].(map[string]any)["step"])
		})
	}
}

func TestAskStream_EmitsNodeEventsThenDone(t *testing.T) {
	appended := []wfmodel.Passage{
		wfmodel.NewPassage("a", "one", map[string]any{wfmodel.MetaSource: "s1"}),
		wfmodel.NewPassage("b", "two", map[string]any{wfmodel.MetaSource: "s2"}),
	}
	escalate := true
	answer := "final answer"
	final := usefulState()
	final.RunID = "run-stream"

	svc := &fakeAsk{events: []graph.Event{
		{Update: &wfmodel.Update{Node: wfmodel.NodeRetrieve, Documents: appended, Merge: wfmodel.MergeAppend}},
		{Update: &wfmodel.Update{Node: wfmodel.NodeGradeDocuments, Documents: appended[:1], Merge: wfmodel.MergeReplace, WebSearch: &escalate}},
		{Update: &wfmodel.Update{Node: wfmodel.NodeGenerate, Generation: &answer}},
		{Final: final},
	}}
	e := newEngine(svc, nil, nil)

	rec := do(t, e, http.MethodPost, "/v1/ask/stream", `{"question":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-stream", rec.Header().Get(RunIDHeader))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	body := rec.Body.String()
	assert.Equal(t, 3, strings.Count(body, "event:node"))
	assert.Equal(t, 1, strings.Count(body, "event:done"))
	assert.NotContains(t, body, "event:error")
	assert.Contains(t, body, `"documents_added":2`)
	assert.Contains(t, body, `"documents_kept":1`)
	assert.Contains(t, body, `"web_search":true`)
	assert.Contains(t, body, `"generation":"final answer"`)
	assert.Less(t, strings.Index(body, "event:node"), strings.Index(body, "event:done"))
}

func TestAskStream_EmitsErrorEvent(t *testing.T) {
	retrieved := []wfmodel.Passage{wfmodel.NewPassage("a", "one", nil)}
	svc := &fakeAsk{events: []graph.Event{
		{Update: &wfmodel.Update{Node: wfmodel.NodeRetrieve, Documents: retrieved, Merge: wfmodel.MergeAppend}},
		{Err: &graph.RunError{Step: string(wfmodel.NodeWebSearch), Err: errors.New("quota exceeded")}},
	}}
	e := newEngine(svc, nil, nil)

	rec := do(t, e, http.MethodPost, "/v1/ask/stream", `{"question":"q"}`)
	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event:node"))
	assert.Contains(t, body, "event:error")
	assert.Contains(t, body, `"step":"web_search"`)
	assert.Contains(t, body, `"details":"quota exceeded"`)
	assert.NotContains(t, body, "event:done")
}

func TestAskStream_RejectsBlankQuestion(t *testing.T) {
	e := newEngine(&fakeAsk{}, nil, nil)
	rec := do(t, e, http.MethodPost, "/v1/ask/stream", `{"question":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns_List(t *testing.T) {
	now := time.Now()
	svc := &fakeRuns{page: repository.NewPagedResult([]*entity.Run{
		{ID: "r1", Question: "q1", Outcome: entity.RunOutcomeExhausted, CreatedAt: now},
	}, 21, repository.NewPagination(2, 10))}
	e := newEngine(nil, svc, nil)

	rec := do(t, e, http.MethodGet, "/v1/runs?page=2&page_size=10&outcome=exhausted", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter)
	assert.Equal(t, entity.RunOutcomeExhausted, svc.filter.Outcome)
	assert.Equal(t, 2, svc.pageArg.Page)

	body := decode(t, rec)
	meta := body["meta"].(map[string]any)
	assert.EqualValues(t, 21, meta["total"])
	assert.EqualValues(t, 3, meta["total_pages"])
	runs := body["data"].(map[string]any)["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, []any{}, runs[0].(map[string]any)["sources"])
}

func TestRuns_ListRejectsUnknownOutcome(t *testing.T) {
	e := newEngine(nil, &fakeRuns{}, nil)
	rec := do(t, e, http.MethodGet, "/v1/runs?outcome=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns_Get(t *testing.T) {
	id := "6f1c2f9e-8d0b-4b7a-9a57-2d4a0e4c1b11"

	t.Run("found", func(t *testing.T) {
		e := newEngine(nil, &fakeRuns{run: &entity.Run{ID: id, Outcome: entity.RunOutcomeFailed, ErrorStep: "route"}}, nil)
		rec := do(t, e, http.MethodGet, "/v1/runs/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]any)
		assert.Equal(t, "failed", data["outcome"])
		assert.Equal(t, "route", data["error_step"])
	})

	t.Run("not found", func(t *testing.T) {
		e := newEngine(nil, &fakeRuns{}, nil)
		rec := do(t, e, http.MethodGet, "/v1/runs/"+id, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, string(apperrors.CodeRunNotFound), errorCode(t, decode(t, rec)))
	})

	t.Run("invalid id", func(t *testing.T) {
		e := newEngine(nil, &fakeRuns{}, nil)
		rec := do(t, e, http.MethodGet, "/v1/runs/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("history disabled", func(t *testing.T) {
		e := newEngine(nil, &fakeRuns{err: rag.ErrHistoryDisabled}, nil)
		rec := do(t, e, http.MethodGet, "/v1/runs/"+id, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestIngest_Enqueue(t *testing.T) {
	job := entity.NewIngestJob("6f1c2f9e-8d0b-4b7a-9a57-2d4a0e4c1b11", []string{"https://example.com/a"}, true)
	svc := &fakeIngest{job: job}
	e := newEngine(nil, nil, svc)

	rec := do(t, e, http.MethodPost, "/v1/ingest", `{"urls":["https://example.com/a"],"reset":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"https://example.com/a"}, svc.gotURLs)
	assert.True(t, svc.gotReset)

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "pending", data["status"])
}

func TestIngest_EnqueueWithoutBodyUsesDefaults(t *testing.T) {
	svc := &fakeIngest{job: entity.NewIngestJob("6f1c2f9e-8d0b-4b7a-9a57-2d4a0e4c1b11", []string{"https://example.com/default"}, false)}
	e := newEngine(nil, nil, svc)

	rec := do(t, e, http.MethodPost, "/v1/ingest", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, svc.gotURLs)
}

func TestIngest_EnqueueErrors(t *testing.T) {
	t.Run("not a url", func(t *testing.T) {
		e := newEngine(nil, nil, &fakeIngest{})
		rec := do(t, e, http.MethodPost, "/v1/ingest", `{"urls":["nope"]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("queue disabled", func(t *testing.T) {
		e := newEngine(nil, nil, &fakeIngest{err: rag.ErrIngestDisabled})
		rec := do(t, e, http.MethodPost, "/v1/ingest", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("publish failure", func(t *testing.T) {
		e := newEngine(nil, nil, &fakeIngest{err: errors.New("publish ingest job: redis down")})
		rec := do(t, e, http.MethodPost, "/v1/ingest", `{}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, string(apperrors.CodeQueueError), errorCode(t, decode(t, rec)))
	})
}

func TestIngest_GetJobNotFound(t *testing.T) {
	e := newEngine(nil, nil, &fakeIngest{})
	rec := do(t, e, http.MethodGet, "/v1/ingest/6f1c2f9e-8d0b-4b7a-9a57-2d4a0e4c1b11", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperrors.CodeJobNotFound), errorCode(t, decode(t, rec)))
}

func TestHealth_Ready(t *testing.T) {
	ok := checkerFunc(func(context.Context) error { return nil })
	down := checkerFunc(func(context.Context) error { return errors.New("down") })

	serve := func(h *HealthHandler) (*closeNotifyRecorder, map[string]any) {
		e := gin.New()
		e.GET("/ready", h.Ready)
		rec := do(t, e, http.MethodGet, "/ready", "")
		return rec, decode(t, rec)
	}

	t.Run("all healthy", func(t *testing.T) {
		rec, body := serve(NewHealthHandler("test",
			Dependency{Name: "milvus", Checker: ok, Required: true},
			Dependency{Name: "postgres"},
		))
		assert.Equal(t, http.StatusOK, rec.Code)
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "ok", checks["milvus"].(map[string]any)["status"])
		assert.Equal(t, "disabled", checks["postgres"].(map[string]any)["status"])
	})

	t.Run("optional dependency down", func(t *testing.T) {
		rec, body := serve(NewHealthHandler("test",
			Dependency{Name: "milvus", Checker: ok, Required: true},
			Dependency{Name: "redis", Checker: down},
		))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "degraded", body["checks"].(map[string]any)["redis"].(map[string]any)["status"])
	})

	t.Run("required dependency down", func(t *testing.T) {
		rec, body := serve(NewHealthHandler("test", Dependency{Name: "milvus", Checker: down, Required: true}))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "not_ready", body["status"])
	})
}

func TestToAppError_PassesThroughAppError(t *testing.T) {
	in := apperrors.New(apperrors.CodeTooManyRequests, "slow down")
	got, step := toAppError(fmt.Errorf("wrapped: %w", in))
	assert.Same(t, in, got)
	assert.Empty(t, step)
}

func TestToAppError_EmptyQuestion(t *testing.T) {
	got, step := toAppError(&graph.RunError{Step: graph.StepInput, Err: wfmodel.ErrEmptyQuestion})
	assert.Equal(t, apperrors.CodeInvalidParam, got.Code)
	assert.Equal(t, http.StatusBadRequest, got.HTTPStatus)
	assert.Equal(t, graph.StepInput, step)
}
