// Package grader 实现工作流中的四类判定：路由、相关性、事实支撑与有用性。
// 每个判定都是一次带 json_schema 约束的 LLM 调用，输出在边界处严格校验。
package grader

import (
	"context"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	llmctx "agentic-rag-api/internal/domain/service"
	wfnode "agentic-rag-api/internal/workflow/node"
	workflowport "agentic-rag-api/internal/workflow/port"
	workflowprompt "agentic-rag-api/internal/workflow/prompt"
	"agentic-rag-api/pkg/logger"
)

const rawPreviewRunes = 200

// Options 判定调用使用的模型参数
type Options struct {
	Provider    string
	Model       string
	Temperature float32
	Registry    *workflowprompt.Registry
}

type structuredCaller struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry
	opts     Options
}

func newStructuredCaller(factory workflowport.ChatModelFactory, opts Options) *structuredCaller {
	reg := opts.Registry
	if reg == nil {
		reg = workflowprompt.Default
	}
	return &structuredCaller{factory: factory, registry: reg, opts: opts}
}

type verdictCall struct {
	node     string
	verdict  string
	promptID workflowprompt.PromptID
	vars     map[string]any
	schema   map[string]any
}

// call 执行一次结构化判定调用并把 JSON 严格解码到 out
func (c *structuredCaller) call(ctx context.Context, vc verdictCall, out any) error {
	if c == nil || c.factory == nil {
		return fmt.Errorf("%s verdict: llm factory not configured", vc.verdict)
	}

	tpl, err := c.registry.ChatTemplate(vc.promptID)
	if err != nil {
		return err
	}
	msgs, err := tpl.Format(ctx, vc.vars)
	if err != nil {
		return fmt.Errorf("%s verdict: format prompt: %w", vc.verdict, err)
	}

	provider := strings.TrimSpace(c.opts.Provider)
	ctx = llmctx.WithNodeProvider(ctx, vc.node, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return fmt.Errorf("%s verdict: %w", vc.verdict, err)
	}

	outMsg, err := chatModel.Generate(ctx, msgs, c.modelOptions(vc, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
			"provider", provider,
			"verdict", vc.verdict,
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, c.modelOptions(vc, false)...)
	}
	if err != nil {
		return fmt.Errorf("%s verdict: llm call: %w", vc.verdict, err)
	}
	if outMsg == nil {
		return formatError(vc.verdict, "", wfnode.ErrEmptyOutput)
	}
	if err := wfnode.DecodeStrictJSON(outMsg.Content, out); err != nil {
		return formatError(vc.verdict, wfnode.TruncateByRunes(outMsg.Content, rawPreviewRunes), err)
	}
	return nil
}

func (c *structuredCaller) modelOptions(vc verdictCall, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 3)
	opts = append(opts, model.WithTemperature(c.opts.Temperature))
	if m := strings.TrimSpace(c.opts.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   vc.verdict,
					"strict": true,
					"schema": vc.schema,
				},
			},
		}))
	}
	return opts
}

func enumSchema(field string, values ...string) map[string]any {
	enum := make([]any, 0, len(values))
	for _, v := range values {
		enum = append(enum, v)
	}
	return objectSchema(field, map[string]any{"type": "string", "enum": enum})
}

func boolSchema(field string) map[string]any {
	return objectSchema(field, map[string]any{"type": "boolean"})
}

func objectSchema(field string, prop map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{field},
		"properties": map[string]any{
			field: prop,
		},
	}
}
