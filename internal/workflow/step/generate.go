package step

import (
	"context"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// Answerer 基于问题和片段生成回答
type Answerer interface {
	Invoke(ctx context.Context, in *wfmodel.GenerateInput) (string, error)
}

// Generate 生成节点：覆盖 generation，不改动 documents
type Generate struct {
	answerer Answerer
}

func NewGenerate(answerer Answerer) *Generate {
	return &Generate{answerer: answerer}
}

func (s *Generate) Name() wfmodel.NodeName { return wfmodel.NodeGenerate }

func (s *Generate) Run(ctx context.Context, st *wfmodel.State) (wfmodel.Update, error) {
	out, err := s.answerer.Invoke(ctx, &wfmodel.GenerateInput{
		Question:  st.Question,
		Documents: st.Documents,
	})
	if err != nil {
		return wfmodel.Update{}, err
	}
	return wfmodel.Update{
		Node:       wfmodel.NodeGenerate,
		Merge:      wfmodel.MergeNone,
		Generation: &out,
	}, nil
}
