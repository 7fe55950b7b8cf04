package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag-api/internal/workflow/grader"
	wfmodel "agentic-rag-api/internal/workflow/model"
	"agentic-rag-api/internal/workflow/step"
)

type fakeRouter struct {
	verdict wfmodel.RouteVerdict
	err     error
}

func (r *fakeRouter) Route(context.Context, string) (wfmodel.RouteVerdict, error) {
	return r.verdict, r.err
}

type fakeRetriever struct {
	docs []wfmodel.Passage
	err  error
}

func (f *fakeRetriever) Retrieve(context.Context, string, *wfmodel.RetrievalConfig) ([]wfmodel.Passage, error) {
	return f.docs, f.err
}

type fakeSearcher struct {
	results []wfmodel.SearchResult
	err     error
}

func (f *fakeSearcher) Search(context.Context, string, int) ([]wfmodel.SearchResult, error) {
	return f.results, f.err
}

type fakeJudge struct {
	relevant map[string]bool
}

func (j *fakeJudge) Grade(_ context.Context, _ string, doc wfmodel.Passage) (wfmodel.RelevanceVerdict, error) {
	if j.relevant[doc.ID] {
		return wfmodel.RelevanceYes, nil
	}
	return wfmodel.RelevanceNo, nil
}

type fakeAnswerer struct {
	mu     sync.Mutex
	n      int
	inputs [][]wfmodel.Passage
	err    error
}

func (a *fakeAnswerer) Invoke(_ context.Context, in *wfmodel.GenerateInput) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.n++
	a.inputs = append(a.inputs, append([]wfmodel.Passage(nil), in.Documents...))
	return "answer " + string(rune('0'+a.n)), nil
}

// scriptedChecker 按顺序返回判定，用尽后重复最后一个
type scriptedChecker struct {
	mu     sync.Mutex
	grades []wfmodel.GenerationGrade
	err    error
	calls  int
}

func (c *scriptedChecker) Check(context.Context, string, []wfmodel.Passage, string) (wfmodel.GenerationGrade, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	i := c.calls
	if i >= len(c.grades) {
		i = len(c.grades) - 1
	}
	c.calls++
	return c.grades[i], nil
}

// recordingStep 记录节点执行顺序
type recordingStep struct {
	step.Step
	trace *[]wfmodel.NodeName
}

func (r recordingStep) Run(ctx context.Context, st *wfmodel.State) (wfmodel.Update, error) {
	*r.trace = append(*r.trace, r.Name())
	return r.Step.Run(ctx, st)
}

type harness struct {
	router    *fakeRouter
	retriever *fakeRetriever
	searcher  *fakeSearcher
	judge     *fakeJudge
	answerer  *fakeAnswerer
	checker   *scriptedChecker
	trace     []wfmodel.NodeName
}

func newHarness(route wfmodel.RouteVerdict, grades ...wfmodel.GenerationGrade) *harness {
	return &harness{
		router:    &fakeRouter{verdict: route},
		retriever: &fakeRetriever{},
		searcher:  &fakeSearcher{results: []wfmodel.SearchResult{{URL: "https://web.example", Content: "web snippet"}}},
		judge:     &fakeJudge{relevant: map[string]bool{}},
		answerer:  &fakeAnswerer{},
		checker:   &scriptedChecker{grades: grades},
	}
}

func (h *harness) controller(t *testing.T, maxGenerations int) *Controller {
	t.Helper()
	wrap := func(s step.Step) step.Step { return recordingStep{Step: s, trace: &h.trace} }
	c, err := New(Deps{
		Router:         h.router,
		Checker:        h.checker,
		Retrieve:       wrap(step.NewRetrieve(h.retriever)),
		GradeDocuments: wrap(step.NewGradeDocuments(h.judge, 0.6)),
		WebSearch:      wrap(step.NewWebSearch(h.searcher, 2)),
		Generate:       wrap(step.NewGenerate(h.answerer)),
	}, Config{MaxGenerations: maxGenerations})
	require.NoError(t, err)
	return c
}

func docs(ids ...string) []wfmodel.Passage {
	out := make([]wfmodel.Passage, 0, len(ids))
	for _, id := range ids {
		out = append(out, wfmodel.NewPassage(id, "text "+id, map[string]any{wfmodel.MetaSource: "https://kb.example/" + id}))
	}
	return out
}

func relevant(ids ...string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func docIDs(in []wfmodel.Passage) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		out = append(out, d.ID)
	}
	return out
}

var (
	retrieve  = wfmodel.NodeRetrieve
	grade     = wfmodel.NodeGradeDocuments
	webSearch = wfmodel.NodeWebSearch
	generate  = wfmodel.NodeGenerate
)

func TestTransitionsValidate(t *testing.T) {
	require.NoError(t, Transitions.Validate(Emits))
}

func TestValidateRejectsIncompleteTables(t *testing.T) {
	clone := func() Table {
		out := make(Table, len(Transitions))
		for from, edges := range Transitions {
			e := make(map[Decision]wfmodel.NodeName, len(edges))
			for d, to := range edges {
				e[d] = to
			}
			out[from] = e
		}
		return out
	}

	cases := map[string]func(Table){
		"missing decision":   func(tb Table) { delete(tb[generate], DecisionExhausted) },
		"missing node":       func(tb Table) { delete(tb, webSearch) },
		"unknown target":     func(tb Table) { tb[retrieve][DecisionAlways] = "rerank" },
		"targets entry":      func(tb Table) { tb[webSearch][DecisionAlways] = Entry },
		"undeclared node":    func(tb Table) { tb["rerank"] = map[Decision]wfmodel.NodeName{DecisionAlways: End} },
		"unemitted decision": func(tb Table) { tb[retrieve][DecisionUseful] = End },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tb := clone()
			mutate(tb)
			assert.Error(t, tb.Validate(Emits))
		})
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful)
	_, err := New(Deps{Checker: h.checker}, Config{})
	assert.Error(t, err)

	_, err = New(Deps{Router: h.router, Checker: h.checker, Retrieve: step.NewRetrieve(h.retriever)}, Config{})
	assert.Error(t, err)
}

func TestNewDefaultsMaxGenerations(t *testing.T) {
	c := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful).controller(t, 0)
	assert.Equal(t, DefaultMaxGenerations, c.MaxGenerations())
}

func TestVectorstoreRouteStartsWithRetrieval(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful)
	h.retriever.docs = docs("a", "b")
	h.judge.relevant = relevant("a", "b")

	st, err := h.controller(t, 3).Run(context.Background(), Input{RunID: "r1", Question: "What is agent memory?"})
	require.NoError(t, err)

	assert.Equal(t, []wfmodel.NodeName{retrieve, grade, generate}, h.trace)
	assert.Equal(t, wfmodel.RouteVectorstore, st.Route)
	assert.Equal(t, wfmodel.OutcomeUseful, st.Outcome)
	assert.Empty(t, st.Caveat)
	assert.Equal(t, "answer 1", st.Generation)
	assert.Equal(t, []string{"a", "b"}, docIDs(st.Documents))
	assert.False(t, st.WebSearch)
}

func TestWebsearchRouteSkipsRelevanceFilter(t *testing.T) {
	h := newHarness(wfmodel.RouteWebsearch, wfmodel.GradeUseful)
	h.searcher.results = []wfmodel.SearchResult{
		{URL: "https://bali.example", Content: "Bali"},
		{URL: "https://java.example", Content: "Java"},
	}

	st, err := h.controller(t, 3).Run(context.Background(), Input{Question: "best places to visit in Indonesia"})
	require.NoError(t, err)

	assert.Equal(t, []wfmodel.NodeName{webSearch, generate}, h.trace)
	require.Len(t, st.Documents, 1)
	assert.True(t, st.Documents[0].IsWebSearch())
	assert.Equal(t, "Bali\nJava", st.Documents[0].Content)
	require.Len(t, h.answerer.inputs, 1)
	assert.Len(t, h.answerer.inputs[0], 1)
	assert.Equal(t, wfmodel.OutcomeUseful, st.Outcome)
}

func TestMajorityIrrelevantEscalatesToWebSearch(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful)
	h.retriever.docs = docs("a", "b", "c", "d", "e")
	h.judge.relevant = relevant("d")

	var updates []wfmodel.Update
	st, err := h.controller(t, 3).Execute(context.Background(), Input{Question: "q"}, func(_ context.Context, u wfmodel.Update) error {
		updates = append(updates, u)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []wfmodel.NodeName{retrieve, grade, webSearch, generate}, h.trace)
	require.Len(t, updates, 4)
	assert.Equal(t, []string{"d"}, docIDs(updates[1].Documents))
	require.NotNil(t, updates[1].WebSearch)
	assert.True(t, *updates[1].WebSearch)

	require.Len(t, st.Documents, 2)
	assert.Equal(t, "d", st.Documents[0].ID)
	assert.True(t, st.Documents[1].IsWebSearch())
}

func TestEmptyRetrievalEscalatesToWebSearch(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful)

	st, err := h.controller(t, 3).Run(context.Background(), Input{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, []wfmodel.NodeName{retrieve, grade, webSearch, generate}, h.trace)
	assert.Len(t, st.Documents, 1)
}

func TestNotSupportedEscalatesToWebSearch(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeNotSupported, wfmodel.GradeUseful)
	h.retriever.docs = docs("a")
	h.judge.relevant = relevant("a")

	st, err := h.controller(t, 3).Run(context.Background(), Input{Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, []wfmodel.NodeName{retrieve, grade, generate, webSearch, generate}, h.trace)
	assert.Equal(t, 2, st.Generations)
	assert.Equal(t, 1, st.WebSearches)
	require.Len(t, h.answerer.inputs, 2)
	assert.Len(t, h.answerer.inputs[1], 2, "second generation sees the appended web passage")
}

func TestNotUsefulRegeneratesFromSameDocuments(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeNotUseful, wfmodel.GradeUseful)
	h.retriever.docs = docs("a", "b")
	h.judge.relevant = relevant("a", "b")

	st, err := h.controller(t, 3).Run(context.Background(), Input{Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, []wfmodel.NodeName{retrieve, grade, generate, generate}, h.trace)
	require.Len(t, h.answerer.inputs, 2)
	assert.Equal(t, docIDs(h.answerer.inputs[0]), docIDs(h.answerer.inputs[1]))
	assert.Equal(t, "answer 2", st.Generation)
	assert.Equal(t, wfmodel.OutcomeUseful, st.Outcome)
}

func TestGenerationCapEndsWithCaveat(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeNotUseful)
	h.retriever.docs = docs("a")
	h.judge.relevant = relevant("a")

	st, err := h.controller(t, 3).Run(context.Background(), Input{Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, []wfmodel.NodeName{retrieve, grade, generate, generate, generate}, h.trace)
	assert.Equal(t, 3, st.Generations)
	assert.Equal(t, wfmodel.OutcomeExhausted, st.Outcome)
	assert.Equal(t, wfmodel.ExhaustedCaveat, st.Caveat)
	assert.Equal(t, "answer 3", st.Generation)
}

func TestGenerationCapBoundsWebSearchCycle(t *testing.T) {
	h := newHarness(wfmodel.RouteWebsearch, wfmodel.GradeNotSupported)

	st, err := h.controller(t, 2).Run(context.Background(), Input{Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, []wfmodel.NodeName{webSearch, generate, webSearch, generate}, h.trace)
	assert.Equal(t, 2, st.Generations)
	assert.Len(t, st.Documents, 2)
	assert.Equal(t, wfmodel.OutcomeExhausted, st.Outcome)
}

func TestFatalErrorsCarryStepAndQuestion(t *testing.T) {
	formatErr := &grader.GenerationFormatError{Verdict: "route", Raw: `{"datasource":"wiki"}`, Err: errors.New("bad enum")}

	cases := []struct {
		name  string
		setup func(h *harness)
		step  string
	}{
		{"route schema violation", func(h *harness) { h.router.err = formatErr }, StepRoute},
		{"index unavailable", func(h *harness) { h.retriever.err = errors.New("milvus unavailable") }, string(retrieve)},
		{"search unavailable", func(h *harness) {
			h.router.verdict = wfmodel.RouteWebsearch
			h.searcher.err = errors.New("tavily unavailable")
		}, string(webSearch)},
		{"completion unavailable", func(h *harness) {
			h.retriever.docs = docs("a")
			h.judge.relevant = relevant("a")
			h.answerer.err = errors.New("openai unavailable")
		}, string(generate)},
		{"check fails", func(h *harness) {
			h.retriever.docs = docs("a")
			h.judge.relevant = relevant("a")
			h.checker.err = errors.New("grader unavailable")
		}, StepGradeGeneration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful)
			tc.setup(h)

			st, err := h.controller(t, 3).Run(context.Background(), Input{RunID: "r1", Question: "What is agent memory?"})
			require.Error(t, err)
			assert.Nil(t, st)

			var runErr *RunError
			require.ErrorAs(t, err, &runErr)
			assert.Equal(t, tc.step, runErr.Step)
			assert.Equal(t, "What is agent memory?", runErr.Question)
			assert.Equal(t, "r1", runErr.RunID)
			assert.Contains(t, err.Error(), tc.step)
		})
	}
}

func TestRouteFormatErrorIsDetectable(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore)
	h.router.err = &grader.GenerationFormatError{Verdict: "route", Err: errors.New("bad enum")}

	_, err := h.controller(t, 3).Run(context.Background(), Input{Question: "q"})
	assert.ErrorIs(t, err, grader.ErrGenerationFormat)
	assert.Empty(t, h.trace)
}

func TestEmptyQuestionFailsAtInput(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful)

	_, err := h.controller(t, 3).Run(context.Background(), Input{Question: "   "})
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, StepInput, runErr.Step)
	assert.ErrorIs(t, err, wfmodel.ErrEmptyQuestion)
}

func TestUpdateCallbackErrorAbortsRun(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful)
	h.retriever.docs = docs("a")
	stop := errors.New("client went away")

	_, err := h.controller(t, 3).Execute(context.Background(), Input{Question: "q"}, func(context.Context, wfmodel.Update) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []wfmodel.NodeName{retrieve}, h.trace)
}

func TestStreamEmitsUpdatesInTransitionOrder(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeNotSupported, wfmodel.GradeUseful)
	h.retriever.docs = docs("a", "b")
	h.judge.relevant = relevant("a", "b")

	var nodes []wfmodel.NodeName
	var final *wfmodel.State
	terminals := 0
	for ev := range h.controller(t, 3).Stream(context.Background(), Input{Question: "q"}) {
		require.NoError(t, ev.Err)
		if ev.Terminal() {
			terminals++
			final = ev.Final
			continue
		}
		require.Zero(t, terminals, "no update after the terminal event")
		nodes = append(nodes, ev.Update.Node)
	}

	assert.Equal(t, []wfmodel.NodeName{retrieve, grade, generate, webSearch, generate}, nodes)
	assert.Equal(t, h.trace, nodes)
	assert.Equal(t, 1, terminals)
	require.NotNil(t, final)
	assert.Equal(t, wfmodel.OutcomeUseful, final.Outcome)
}

func TestStreamEndsWithErrorEvent(t *testing.T) {
	h := newHarness(wfmodel.RouteWebsearch, wfmodel.GradeUseful)
	h.searcher.err = errors.New("tavily unavailable")

	var events []Event
	for ev := range h.controller(t, 3).Stream(context.Background(), Input{Question: "q"}) {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Final)
	var runErr *RunError
	require.ErrorAs(t, events[0].Err, &runErr)
	assert.Equal(t, string(webSearch), runErr.Step)
}

func TestStreamStopsWhenContextCancelled(t *testing.T) {
	h := newHarness(wfmodel.RouteVectorstore, wfmodel.GradeUseful)
	h.retriever.docs = docs("a")
	h.judge.relevant = relevant("a")

	ctx, cancel := context.WithCancel(context.Background())
	ch := h.controller(t, 3).Stream(ctx, Input{Question: "q"})

	first := <-ch
	require.NotNil(t, first.Update)
	assert.Equal(t, retrieve, first.Update.Node)
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
	assert.NotContains(t, h.trace, generate)
}

func TestConcurrentRunsDoNotShareState(t *testing.T) {
	h := newHarness(wfmodel.RouteWebsearch, wfmodel.GradeUseful)
	c := h.controller(t, 3)
	// 并发运行时不记录顺序
	c.steps[webSearch] = step.NewWebSearch(h.searcher, 2)
	c.steps[generate] = step.NewGenerate(h.answerer)

	var wg sync.WaitGroup
	results := make([]*wfmodel.State, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := c.Run(context.Background(), Input{Question: "q"})
			if err == nil {
				results[i] = st
			}
		}(i)
	}
	wg.Wait()

	for _, st := range results {
		require.NotNil(t, st)
		assert.Len(t, st.Documents, 1)
		assert.Equal(t, 1, st.Generations)
	}
}
