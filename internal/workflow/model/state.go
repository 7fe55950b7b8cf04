package model

import (
	"errors"
	"strings"
)

// ErrEmptyQuestion 问题为空
var ErrEmptyQuestion = errors.New("question must not be empty")

// ExhaustedCaveat 达到生成上限后附加在回答上的提示
const ExhaustedCaveat = "This answer could not be fully verified against the retrieved sources within the allowed number of attempts; treat it as a best-effort response."

// NodeName 工作流节点名
type NodeName string

const (
	NodeRetrieve       NodeName = "retrieve"
	NodeGradeDocuments NodeName = "grade_documents"
	NodeWebSearch      NodeName = "web_search"
	NodeGenerate       NodeName = "generate"
)

// State 单次问答运行的共享状态
type State struct {
	RunID           string
	Question        string
	RetrievalConfig *RetrievalConfig
	Documents       []Passage
	WebSearch       bool
	Generation      string

	Route       RouteVerdict
	Generations int
	WebSearches int
	Outcome     Outcome
	Caveat      string
}

// NewState 创建新的运行状态
func NewState(runID, question string, cfg *RetrievalConfig) (*State, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, ErrEmptyQuestion
	}
	return &State{RunID: runID, Question: q, RetrievalConfig: cfg}, nil
}

// MergeMode 节点输出的 documents 合并方式
type MergeMode int

const (
	MergeNone MergeMode = iota
	MergeAppend
	MergeReplace
)

// Update 单个节点完成后的增量
type Update struct {
	Node       NodeName
	Documents  []Passage
	Merge      MergeMode
	WebSearch  *bool
	Generation *string
}

// Apply 将节点增量合并进状态
func (s *State) Apply(u Update) {
	switch u.Merge {
	case MergeAppend:
		s.Documents = append(s.Documents, u.Documents...)
	case MergeReplace:
		s.Documents = append([]Passage(nil), u.Documents...)
	}
	if u.WebSearch != nil {
		s.WebSearch = *u.WebSearch
	}
	if u.Generation != nil {
		s.Generation = *u.Generation
	}
	switch u.Node {
	case NodeGenerate:
		s.Generations++
	case NodeWebSearch:
		s.WebSearches++
	}
}

// Clone 返回状态的浅拷贝（Passage 不可变，只复制切片）
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Documents = append([]Passage(nil), s.Documents...)
	if s.RetrievalConfig != nil {
		cfg := *s.RetrievalConfig
		out.RetrievalConfig = &cfg
	}
	return &out
}

// Sources 返回当前 documents 的来源列表（按出现顺序去重）
func (s *State) Sources() []string {
	seen := make(map[string]struct{}, len(s.Documents))
	out := make([]string, 0, len(s.Documents))
	for _, d := range s.Documents {
		src := d.Source()
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}
