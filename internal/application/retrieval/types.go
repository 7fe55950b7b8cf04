package retrieval

import (
	"fmt"
	"strings"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// Options 生效的检索参数
type Options struct {
	SearchType     wfmodel.SearchMethod
	K              int
	FetchK         int
	LambdaMult     float64
	ScoreThreshold float64
}

// DefaultOptions 与默认配置一致的检索参数
func DefaultOptions() Options {
	return Options{
		SearchType:     wfmodel.SearchMMR,
		K:              6,
		FetchK:         20,
		LambdaMult:     0.5,
		ScoreThreshold: 0.3,
	}
}

// Merge 以单次运行的参数覆盖默认值；零值字段不覆盖
func (o Options) Merge(cfg *wfmodel.RetrievalConfig) Options {
	if cfg == nil {
		return o
	}
	out := o
	if s := strings.TrimSpace(string(cfg.SearchType)); s != "" {
		out.SearchType = wfmodel.SearchMethod(strings.ToLower(s))
	}
	if cfg.K != 0 {
		out.K = cfg.K
	}
	if cfg.FetchK != 0 {
		out.FetchK = cfg.FetchK
	}
	if cfg.LambdaMult != nil {
		out.LambdaMult = *cfg.LambdaMult
	}
	if cfg.ScoreThreshold != nil {
		out.ScoreThreshold = *cfg.ScoreThreshold
	}
	if out.FetchK < out.K {
		out.FetchK = out.K
	}
	return out
}

// UsesMMR diversity 为 mmr 的别名
func (o Options) UsesMMR() bool {
	return o.SearchType == wfmodel.SearchMMR || o.SearchType == wfmodel.SearchDiversity
}

// Validate 校验检索参数
func (o Options) Validate() error {
	switch o.SearchType {
	case wfmodel.SearchSimilarity, wfmodel.SearchMMR, wfmodel.SearchDiversity:
	default:
		return fmt.Errorf("%w: unsupported search_type %q", ErrInvalidOptions, o.SearchType)
	}
	if o.K <= 0 || o.K > 100 {
		return fmt.Errorf("%w: k must be within [1,100], got %d", ErrInvalidOptions, o.K)
	}
	if o.FetchK < o.K || o.FetchK > 500 {
		return fmt.Errorf("%w: fetch_k must be within [k,500], got %d", ErrInvalidOptions, o.FetchK)
	}
	if o.LambdaMult < 0 || o.LambdaMult > 1 {
		return fmt.Errorf("%w: lambda_mult must be within [0,1], got %v", ErrInvalidOptions, o.LambdaMult)
	}
	if o.ScoreThreshold < -1 || o.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score_threshold must be within [-1,1], got %v", ErrInvalidOptions, o.ScoreThreshold)
	}
	return nil
}

// SourceDocument 一篇待入库的源文档
type SourceDocument struct {
	Source  string
	Title   string
	Content string
}
