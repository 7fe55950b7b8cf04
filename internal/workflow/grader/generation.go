package grader

import (
	"context"
	"fmt"

	wfmodel "agentic-rag-api/internal/workflow/model"
	wfnode "agentic-rag-api/internal/workflow/node"
	workflowport "agentic-rag-api/internal/workflow/port"
	workflowprompt "agentic-rag-api/internal/workflow/prompt"
)

const nodeGradeGeneration = "grade_generation"

type boolScorePayload struct {
	BinaryScore *bool `json:"binary_score"`
}

// HallucinationGrader 判定回答是否被上下文事实支撑
type HallucinationGrader struct {
	caller *structuredCaller
}

func NewHallucinationGrader(factory workflowport.ChatModelFactory, opts Options) *HallucinationGrader {
	return &HallucinationGrader{caller: newStructuredCaller(factory, opts)}
}

func (g *HallucinationGrader) Grade(ctx context.Context, docs []wfmodel.Passage, generation string) (wfmodel.GroundednessVerdict, error) {
	var p boolScorePayload
	err := g.caller.call(ctx, verdictCall{
		node:     nodeGradeGeneration,
		verdict:  "groundedness",
		promptID: workflowprompt.PromptHallucinationGraderV1,
		vars:     map[string]any{"documents": wfnode.FormatDocuments(docs), "generation": generation},
		schema:   boolSchema("binary_score"),
	}, &p)
	if err != nil {
		return false, err
	}
	if p.BinaryScore == nil {
		return false, formatError("groundedness", "", fmt.Errorf("missing field binary_score"))
	}
	return wfmodel.GroundednessVerdict(*p.BinaryScore), nil
}

// AnswerGrader 判定回答是否解决了问题
type AnswerGrader struct {
	caller *structuredCaller
}

func NewAnswerGrader(factory workflowport.ChatModelFactory, opts Options) *AnswerGrader {
	return &AnswerGrader{caller: newStructuredCaller(factory, opts)}
}

func (g *AnswerGrader) Grade(ctx context.Context, question, generation string) (wfmodel.UsefulnessVerdict, error) {
	var p boolScorePayload
	err := g.caller.call(ctx, verdictCall{
		node:     nodeGradeGeneration,
		verdict:  "usefulness",
		promptID: workflowprompt.PromptAnswerGraderV1,
		vars:     map[string]any{"question": question, "generation": generation},
		schema:   boolSchema("binary_score"),
	}, &p)
	if err != nil {
		return false, err
	}
	if p.BinaryScore == nil {
		return false, formatError("usefulness", "", fmt.Errorf("missing field binary_score"))
	}
	return wfmodel.UsefulnessVerdict(*p.BinaryScore), nil
}

// GroundednessGrader 事实支撑判定（便于替换实现）
type GroundednessGrader interface {
	Grade(ctx context.Context, docs []wfmodel.Passage, generation string) (wfmodel.GroundednessVerdict, error)
}

// UsefulnessGrader 有用性判定
type UsefulnessGrader interface {
	Grade(ctx context.Context, question, generation string) (wfmodel.UsefulnessVerdict, error)
}

// GenerationChecker 先查事实支撑，再查有用性
type GenerationChecker struct {
	grounded GroundednessGrader
	useful   UsefulnessGrader
}

func NewGenerationChecker(grounded GroundednessGrader, useful UsefulnessGrader) *GenerationChecker {
	return &GenerationChecker{grounded: grounded, useful: useful}
}

// Check 返回 not_supported / not_useful / useful；不被支撑时不会发起有用性调用
func (c *GenerationChecker) Check(ctx context.Context, question string, docs []wfmodel.Passage, generation string) (wfmodel.GenerationGrade, error) {
	grounded, err := c.grounded.Grade(ctx, docs, generation)
	if err != nil {
		return "", err
	}
	if !grounded {
		return wfmodel.GradeNotSupported, nil
	}
	useful, err := c.useful.Grade(ctx, question, generation)
	if err != nil {
		return "", err
	}
	if !useful {
		return wfmodel.GradeNotUseful, nil
	}
	return wfmodel.GradeUseful, nil
}
