// Package llm 管理工作流使用的 ChatModel 客户端
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"agentic-rag-api/internal/config"
)

// EinoFactory 按提供商名称惰性创建 OpenAI 兼容的 ChatModel，创建后在进程内复用
type EinoFactory struct {
	cfg config.LLMConfig

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

// NewEinoFactory 默认提供商未登记或未配置模型时返回错误
func NewEinoFactory(cfg *config.Config) (*EinoFactory, error) {
	def, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok {
		return nil, fmt.Errorf("llm: default provider %q not configured", cfg.LLM.DefaultProvider)
	}
	if def.Model == "" {
		return nil, fmt.Errorf("llm: provider %q has no model", cfg.LLM.DefaultProvider)
	}
	return &EinoFactory{cfg: cfg.LLM, models: make(map[string]model.BaseChatModel)}, nil
}

// Get name 为空时使用默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.cfg.DefaultProvider
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.models[name]; ok {
		return m, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	m, err := newChatModel(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create chat model for %s: %w", name, err)
	}
	f.models[name] = m
	return m, nil
}

func newChatModel(ctx context.Context, pc config.ProviderConfig) (model.BaseChatModel, error) {
	temperature := float32(pc.Temperature)
	chatCfg := &openai.ChatModelConfig{
		APIKey:      pc.APIKey,
		BaseURL:     pc.BaseURL,
		Model:       pc.Model,
		Temperature: &temperature,
		Timeout:     pc.Timeout,
	}
	if pc.MaxTokens > 0 {
		maxTokens := pc.MaxTokens
		chatCfg.MaxTokens = &maxTokens
	}
	return openai.NewChatModel(ctx, chatCfg)
}
