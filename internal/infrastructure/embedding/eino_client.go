// Package embedding 提供 Embedding 服务客户端
package embedding

import (
	"context"
	"fmt"
	"strings"

	"agentic-rag-api/internal/config"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

const defaultModel = "text-embedding-3-small"

// NewEinoEmbedder 创建基于 Eino 的 Embedder；Endpoint 为空时使用 OpenAI 官方地址
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedding config is nil")
	}
	if p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p != "" && p != "openai" {
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	// 使用 Eino 的 OpenAI 适配器
	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: strings.TrimSpace(cfg.Endpoint),
		Model:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}
