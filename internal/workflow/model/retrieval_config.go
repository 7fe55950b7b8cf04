package model

// SearchMethod 检索方式
type SearchMethod string

const (
	SearchSimilarity SearchMethod = "similarity"
	SearchMMR        SearchMethod = "mmr"
	// SearchDiversity 与 mmr 等价的别名
	SearchDiversity SearchMethod = "diversity"
)

// RetrievalConfig 单次运行的检索参数，零值字段由检索器使用默认值补齐
type RetrievalConfig struct {
	SearchType     SearchMethod `json:"search_type,omitempty"`
	K              int          `json:"k,omitempty"`
	FetchK         int          `json:"fetch_k,omitempty"`
	LambdaMult     *float64     `json:"lambda_mult,omitempty"`
	ScoreThreshold *float64     `json:"score_threshold,omitempty"`
}

// Float64 返回指针，便于构造可选参数
func Float64(v float64) *float64 {
	return &v
}
