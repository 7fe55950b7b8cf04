// Package step 实现工作流中的四个节点：检索、相关性过滤、联网搜索、生成
package step

import (
	"context"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// Step 读取运行状态并产出增量，不直接修改状态
type Step interface {
	Name() wfmodel.NodeName
	Run(ctx context.Context, st *wfmodel.State) (wfmodel.Update, error)
}

func boolPtr(v bool) *bool { return &v }
