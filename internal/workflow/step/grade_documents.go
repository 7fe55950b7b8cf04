package step

import (
	"context"

	"agentic-rag-api/pkg/logger"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// DefaultIrrelevantThreshold 不相关片段占比达到该值即转联网搜索
const DefaultIrrelevantThreshold = 0.6

// RelevanceJudge 单片段相关性判定
type RelevanceJudge interface {
	Grade(ctx context.Context, question string, doc wfmodel.Passage) (wfmodel.RelevanceVerdict, error)
}

// GradeDocuments 逐个判定片段相关性，保留 yes 片段并决定是否联网搜索
type GradeDocuments struct {
	judge     RelevanceJudge
	threshold float64
}

func NewGradeDocuments(judge RelevanceJudge, threshold float64) *GradeDocuments {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultIrrelevantThreshold
	}
	return &GradeDocuments{judge: judge, threshold: threshold}
}

func (s *GradeDocuments) Name() wfmodel.NodeName { return wfmodel.NodeGradeDocuments }

func (s *GradeDocuments) Run(ctx context.Context, st *wfmodel.State) (wfmodel.Update, error) {
	filtered := make([]wfmodel.Passage, 0, len(st.Documents))
	for _, doc := range st.Documents {
		verdict, err := s.judge.Grade(ctx, st.Question, doc)
		if err != nil {
			return wfmodel.Update{}, err
		}
		if verdict == wfmodel.RelevanceYes {
			filtered = append(filtered, doc)
		}
	}

	escalate := NeedsWebSearch(len(st.Documents), len(filtered), s.threshold)
	logger.Debug(ctx, "documents graded",
		"total", len(st.Documents),
		"relevant", len(filtered),
		"web_search", escalate,
	)
	return wfmodel.Update{
		Node:      wfmodel.NodeGradeDocuments,
		Documents: filtered,
		Merge:     wfmodel.MergeReplace,
		WebSearch: boolPtr(escalate),
	}, nil
}

// NeedsWebSearch 过滤后为空，或不相关占比 >= threshold 时返回 true
func NeedsWebSearch(total, relevant int, threshold float64) bool {
	if relevant == 0 || total == 0 {
		return true
	}
	irrelevant := total - relevant
	return float64(irrelevant)/float64(total) >= threshold
}
