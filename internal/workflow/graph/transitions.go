// Package graph 实现问答工作流的状态机：静态转移表 + 单线程控制器
package graph

import (
	"fmt"
	"sort"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// 虚拟节点
const (
	Entry wfmodel.NodeName = "__entry__"
	End   wfmodel.NodeName = "__end__"
)

// Decision 节点完成后用于选择下一跳的判定值
type Decision string

const (
	DecisionVectorstore  Decision = Decision(wfmodel.RouteVectorstore)
	DecisionWebsearch    Decision = Decision(wfmodel.RouteWebsearch)
	DecisionAlways       Decision = "always"
	DecisionEscalate     Decision = "web_search"
	DecisionGenerate     Decision = "generate"
	DecisionUseful       Decision = Decision(wfmodel.GradeUseful)
	DecisionNotUseful    Decision = Decision(wfmodel.GradeNotUseful)
	DecisionNotSupported Decision = Decision(wfmodel.GradeNotSupported)
	DecisionExhausted    Decision = "exhausted"
)

// Table 转移表：from -> decision -> to
type Table map[wfmodel.NodeName]map[Decision]wfmodel.NodeName

// Transitions 工作流唯一的拓扑
var Transitions = Table{
	Entry: {
		DecisionVectorstore: wfmodel.NodeRetrieve,
		DecisionWebsearch:   wfmodel.NodeWebSearch,
	},
	wfmodel.NodeRetrieve: {
		DecisionAlways: wfmodel.NodeGradeDocuments,
	},
	wfmodel.NodeGradeDocuments: {
		DecisionEscalate: wfmodel.NodeWebSearch,
		DecisionGenerate: wfmodel.NodeGenerate,
	},
	wfmodel.NodeWebSearch: {
		DecisionAlways: wfmodel.NodeGenerate,
	},
	wfmodel.NodeGenerate: {
		DecisionUseful:       End,
		DecisionNotUseful:    wfmodel.NodeGenerate,
		DecisionNotSupported: wfmodel.NodeWebSearch,
		DecisionExhausted:    End,
	},
}

// Emits 每个节点可能产出的判定值
var Emits = map[wfmodel.NodeName][]Decision{
	Entry:                      {DecisionVectorstore, DecisionWebsearch},
	wfmodel.NodeRetrieve:       {DecisionAlways},
	wfmodel.NodeGradeDocuments: {DecisionEscalate, DecisionGenerate},
	wfmodel.NodeWebSearch:      {DecisionAlways},
	wfmodel.NodeGenerate:       {DecisionUseful, DecisionNotUseful, DecisionNotSupported, DecisionExhausted},
}

// Next 查表，未定义的转移返回错误
func (t Table) Next(from wfmodel.NodeName, d Decision) (wfmodel.NodeName, error) {
	edges, ok := t[from]
	if !ok {
		return "", fmt.Errorf("no transitions from %q", from)
	}
	to, ok := edges[d]
	if !ok {
		return "", fmt.Errorf("no transition from %q on %q", from, d)
	}
	return to, nil
}

// Validate 检查每个节点对其全部判定值都有出边，且目标节点已知
func (t Table) Validate(emits map[wfmodel.NodeName][]Decision) error {
	for _, from := range sortedNodes(emits) {
		edges, ok := t[from]
		if !ok {
			return fmt.Errorf("node %q has no outgoing transitions", from)
		}
		for _, d := range emits[from] {
			to, ok := edges[d]
			if !ok {
				return fmt.Errorf("node %q: missing transition for decision %q", from, d)
			}
			if to == Entry {
				return fmt.Errorf("node %q: transition %q targets the entry", from, d)
			}
			if to != End {
				if _, known := emits[to]; !known {
					return fmt.Errorf("node %q: transition %q targets unknown node %q", from, d, to)
				}
			}
		}
		if len(edges) != len(emits[from]) {
			return fmt.Errorf("node %q declares transitions for decisions it never emits", from)
		}
	}
	for from := range t {
		if _, ok := emits[from]; !ok {
			return fmt.Errorf("transitions declared for unknown node %q", from)
		}
	}
	if _, ok := t[Entry]; !ok {
		return fmt.Errorf("entry has no outgoing transitions")
	}
	return nil
}

func sortedNodes(m map[wfmodel.NodeName][]Decision) []wfmodel.NodeName {
	out := make([]wfmodel.NodeName, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
