package model

// LLMOptions 单次 LLM 调用的可选参数
type LLMOptions struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// GenerateInput 回答生成链的输入
type GenerateInput struct {
	Question  string
	Documents []Passage
	LLMOptions
}
