package grader

import (
	"context"
	"fmt"

	wfmodel "agentic-rag-api/internal/workflow/model"
	workflowport "agentic-rag-api/internal/workflow/port"
	workflowprompt "agentic-rag-api/internal/workflow/prompt"
)

// RelevanceGrader 判定单个片段与问题是否相关
type RelevanceGrader struct {
	caller *structuredCaller
}

func NewRelevanceGrader(factory workflowport.ChatModelFactory, opts Options) *RelevanceGrader {
	return &RelevanceGrader{caller: newStructuredCaller(factory, opts)}
}

type stringScorePayload struct {
	BinaryScore *string `json:"binary_score"`
}

func (g *RelevanceGrader) Grade(ctx context.Context, question string, doc wfmodel.Passage) (wfmodel.RelevanceVerdict, error) {
	var p stringScorePayload
	err := g.caller.call(ctx, verdictCall{
		node:     string(wfmodel.NodeGradeDocuments),
		verdict:  "relevance",
		promptID: workflowprompt.PromptRetrievalGraderV1,
		vars:     map[string]any{"question": question, "document": doc.Content},
		schema:   enumSchema("binary_score", string(wfmodel.RelevanceYes), string(wfmodel.RelevanceNo)),
	}, &p)
	if err != nil {
		return "", err
	}
	if p.BinaryScore == nil {
		return "", formatError("relevance", "", fmt.Errorf("missing field binary_score"))
	}
	v := wfmodel.RelevanceVerdict(*p.BinaryScore)
	if !v.Valid() {
		return "", formatError("relevance", *p.BinaryScore, fmt.Errorf("binary_score %q is not one of yes|no", *p.BinaryScore))
	}
	return v, nil
}
