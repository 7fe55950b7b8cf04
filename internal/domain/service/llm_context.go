package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyNode     llmCtxKey = "llm_node"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
)

const unknownLabel = "unknown"

// WithNode 标记当前 LLM 调用所属的工作流节点（用于指标与追踪标签）
func WithNode(ctx context.Context, node string) context.Context {
	n := strings.TrimSpace(node)
	if n == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyNode, n)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

func WithNodeProvider(ctx context.Context, node, provider string) context.Context {
	return WithProvider(WithNode(ctx, node), provider)
}

func NodeFromContext(ctx context.Context) string {
	return labelFromContext(ctx, llmCtxKeyNode)
}

func ProviderFromContext(ctx context.Context) string {
	return labelFromContext(ctx, llmCtxKeyProvider)
}

func labelFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknownLabel
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return unknownLabel
	}
	return s
}
