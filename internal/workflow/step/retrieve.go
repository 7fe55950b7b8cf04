package step

import (
	"context"
	"fmt"

	wfmodel "agentic-rag-api/internal/workflow/model"
	workflowport "agentic-rag-api/internal/workflow/port"
)

// Retrieve 向量检索节点，结果追加到 documents
type Retrieve struct {
	retriever workflowport.Retriever
}

func NewRetrieve(retriever workflowport.Retriever) *Retrieve {
	return &Retrieve{retriever: retriever}
}

func (s *Retrieve) Name() wfmodel.NodeName { return wfmodel.NodeRetrieve }

func (s *Retrieve) Run(ctx context.Context, st *wfmodel.State) (wfmodel.Update, error) {
	if s.retriever == nil {
		return wfmodel.Update{}, fmt.Errorf("retriever not configured")
	}
	docs, err := s.retriever.Retrieve(ctx, st.Question, st.RetrievalConfig)
	if err != nil {
		return wfmodel.Update{}, err
	}
	return wfmodel.Update{
		Node:      wfmodel.NodeRetrieve,
		Documents: docs,
		Merge:     wfmodel.MergeAppend,
	}, nil
}
