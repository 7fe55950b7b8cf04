package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	llmctx "agentic-rag-api/internal/domain/service"
	"agentic-rag-api/pkg/metrics"
)

var tracer = otel.Tracer("eino")

type callKey struct{}

// call 一次 ChatModel 调用在 OnStart 与 OnEnd/OnError 之间共享的状态
type call struct {
	start    time.Time
	model    string
	node     string
	provider string
	span     trace.Span
}

// newChatModelCallbackHandler 为每次 ChatModel 调用记录指标与 span。
// node/provider 标签来自调用方通过 llmctx.WithNodeProvider 写入的上下文。
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			c := &call{
				start:    time.Now(),
				node:     llmctx.NodeFromContext(ctx),
				provider: llmctx.ProviderFromContext(ctx),
			}
			if input != nil && input.Config != nil {
				c.model = input.Config.Model
			}

			attrs := []attribute.KeyValue{
				attribute.String("workflow.node", c.node),
				attribute.String("llm.provider", c.provider),
				attribute.String("llm.model", c.model),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.node_name", info.Name), attribute.String("eino.type", info.Type))
			}
			ctx, c.span = tracer.Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return context.WithValue(ctx, callKey{}, c)
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			c := callFrom(ctx)
			if output != nil && output.Config != nil && output.Config.Model != "" {
				c.model = output.Config.Model
			}
			if output != nil && output.TokenUsage != nil {
				u := output.TokenUsage
				metrics.LLMTokensUsed.WithLabelValues(c.provider, c.model, "prompt").Add(float64(u.PromptTokens))
				metrics.LLMTokensUsed.WithLabelValues(c.provider, c.model, "completion").Add(float64(u.CompletionTokens))
				c.span.SetAttributes(
					attribute.Int("llm.prompt_tokens", u.PromptTokens),
					attribute.Int("llm.completion_tokens", u.CompletionTokens),
				)
			}
			c.finish("success")
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			c := callFrom(ctx)
			c.span.RecordError(err)
			c.span.SetStatus(codes.Error, err.Error())
			c.finish("error")
			return ctx
		},
	}
}

// callFrom OnStart 未执行时（回调只注册了一半）返回只带标签的空状态
func callFrom(ctx context.Context) *call {
	if c, ok := ctx.Value(callKey{}).(*call); ok {
		return c
	}
	return &call{
		node:     llmctx.NodeFromContext(ctx),
		provider: llmctx.ProviderFromContext(ctx),
		span:     trace.SpanFromContext(ctx),
	}
}

func (c *call) finish(status string) {
	metrics.LLMCallTotal.WithLabelValues(c.provider, c.model, c.node, status).Inc()
	if !c.start.IsZero() {
		metrics.LLMCallDuration.WithLabelValues(c.provider, c.model).Observe(time.Since(c.start).Seconds())
	}
	c.span.End()
}
