package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "agentic-rag-api/internal/domain/service"
	wfmodel "agentic-rag-api/internal/workflow/model"
	wfnode "agentic-rag-api/internal/workflow/node"
	workflowport "agentic-rag-api/internal/workflow/port"
	workflowprompt "agentic-rag-api/internal/workflow/prompt"
)

// AnswerChain 基于问题与上下文片段生成回答：template -> llm -> finalize
type AnswerChain struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry
	defaults wfmodel.LLMOptions

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.GenerateInput, string]
	chainErr  error
}

func NewAnswerChain(factory workflowport.ChatModelFactory, defaults wfmodel.LLMOptions) *AnswerChain {
	return &AnswerChain{
		factory:  factory,
		registry: workflowprompt.Default,
		defaults: defaults,
	}
}

// Invoke 运行生成链，返回回答文本
func (c *AnswerChain) Invoke(ctx context.Context, in *wfmodel.GenerateInput) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return "", err
	}
	return chain.Invoke(ctx, in)
}

type answerChainState struct {
	In       *wfmodel.GenerateInput
	Options  wfmodel.LLMOptions
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *AnswerChain) getChain() (compose.Runnable[*wfmodel.GenerateInput, string], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *AnswerChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.GenerateInput, string], error) {
	instructions, err := workflowprompt.GenerationInstructions()
	if err != nil {
		return nil, err
	}

	chain := compose.NewChain[*wfmodel.GenerateInput, string]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.GenerateInput) (*answerChainState, error) {
			st := &answerChainState{In: in, Options: c.mergeOptions(in.LLMOptions)}
			tpl, err := c.registry.ChatTemplate(workflowprompt.PromptGenerateV1)
			if err != nil {
				return nil, err
			}
			st.Messages, err = tpl.Format(ctx, map[string]any{
				"question":                strings.TrimSpace(in.Question),
				"context":                 wfnode.FormatDocuments(in.Documents),
				"additional_instructions": instructions,
			})
			if err != nil {
				return nil, fmt.Errorf("format generate prompt: %w", err)
			}
			return st, nil
		}),
		compose.WithNodeName("generate.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *answerChainState) (*answerChainState, error) {
			provider := strings.TrimSpace(st.Options.Provider)
			ctx = llmctx.WithNodeProvider(ctx, string(wfmodel.NodeGenerate), provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}
			outMsg, err := chatModel.Generate(ctx, st.Messages, buildModelOptions(st.Options)...)
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("generate.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *answerChainState) (string, error) {
			return strings.TrimSpace(st.OutMsg.Content), nil
		}),
		compose.WithNodeName("generate.finalize"),
	)

	return chain.Compile(ctx)
}

func (c *AnswerChain) mergeOptions(in wfmodel.LLMOptions) wfmodel.LLMOptions {
	out := c.defaults
	if strings.TrimSpace(in.Provider) != "" {
		out.Provider = in.Provider
	}
	if strings.TrimSpace(in.Model) != "" {
		out.Model = in.Model
	}
	if in.Temperature != nil {
		out.Temperature = in.Temperature
	}
	if in.MaxTokens != nil {
		out.MaxTokens = in.MaxTokens
	}
	return out
}

func buildModelOptions(o wfmodel.LLMOptions) []model.Option {
	opts := make([]model.Option, 0, 3)
	if o.Temperature != nil {
		opts = append(opts, model.WithTemperature(*o.Temperature))
	}
	if o.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*o.MaxTokens))
	}
	if m := strings.TrimSpace(o.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	return opts
}
