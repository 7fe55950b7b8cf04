// Package prompt 内嵌的提示词模板，按 PromptID 构造 eino ChatTemplate
package prompt

import (
	"embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptRouterV1              PromptID = "router_v1"
	PromptRetrievalGraderV1     PromptID = "retrieval_grader_v1"
	PromptHallucinationGraderV1 PromptID = "hallucination_grader_v1"
	PromptAnswerGraderV1        PromptID = "answer_grader_v1"
	PromptGenerateV1            PromptID = "generate_v1"
)

// AllPrompts 启动时需要预加载校验的模板
var AllPrompts = []PromptID{
	PromptRouterV1,
	PromptRetrievalGraderV1,
	PromptHallucinationGraderV1,
	PromptAnswerGraderV1,
	PromptGenerateV1,
}

// Registry 模板首次使用时解析，之后复用
type Registry struct {
	mu    sync.Mutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{cache: make(map[PromptID]einoprompt.ChatTemplate)}
}

// Default 进程级共享的模板注册表
var Default = NewRegistry()

// ChatTemplate 由 templates/<id>.system.txt 与 <id>.user.txt 组成，变量使用 FString 语法
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}
	if !slices.Contains(AllPrompts, id) {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	system, err := readEmbeddedText("templates/" + string(id) + ".system.txt")
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText("templates/" + string(id) + ".user.txt")
	if err != nil {
		return nil, err
	}
	tpl := einoprompt.FromMessages(schema.FString, schema.SystemMessage(system), schema.UserMessage(user))
	r.cache[id] = tpl
	return tpl, nil
}

// Preload 加载全部模板，缺失文件在启动阶段即报错
func (r *Registry) Preload() error {
	for _, id := range AllPrompts {
		if _, err := r.ChatTemplate(id); err != nil {
			return err
		}
	}
	_, err := GenerationInstructions()
	return err
}

// GenerationInstructions 回答生成时附带的静态后处理指令
func GenerationInstructions() (string, error) {
	return readEmbeddedText("templates/generate_v1.instructions.txt")
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
