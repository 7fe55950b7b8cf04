package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

func TestDescribeUpdate(t *testing.T) {
	yes := true
	answer := "答案ok"
	docs := []wfmodel.Passage{wfmodel.NewPassage("1", "a", nil), wfmodel.NewPassage("2", "b", nil)}

	tests := []struct {
		name string
		u    wfmodel.Update
		want string
	}{
		{"retrieve", wfmodel.Update{Node: wfmodel.NodeRetrieve, Documents: docs, Merge: wfmodel.MergeAppend}, "node retrieve: +2 documents"},
		{"grade", wfmodel.Update{Node: wfmodel.NodeGradeDocuments, Documents: docs[:1], Merge: wfmodel.MergeReplace, WebSearch: &yes}, "node grade_documents: 1 documents kept (web search requested)"},
		{"generate", wfmodel.Update{Node: wfmodel.NodeGenerate, Generation: &answer}, "node generate: generated 4 chars"},
		{"bare", wfmodel.Update{Node: wfmodel.NodeWebSearch}, "node web_search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeUpdate(&tt.u))
		})
	}
}
