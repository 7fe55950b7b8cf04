// Package wftest 提供工作流测试用的假实现
package wftest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Call 一次被记录的模型调用
type Call struct {
	System string
	User   string
}

// Responder 根据提示词返回模型输出
type Responder func(call Call) (string, error)

// ChatModel 脚本化的 model.BaseChatModel，并发安全
type ChatModel struct {
	mu        sync.Mutex
	respond   Responder
	calls     []Call
	failFirst error
}

func NewChatModel(respond Responder) *ChatModel {
	return &ChatModel{respond: respond}
}

// FailFirst 让下一次调用返回指定错误（模拟 provider 拒绝 response_format）
func (m *ChatModel) FailFirst(err error) *ChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst = err
	return m
}

func (m *ChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	call := Call{}
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			call.System += msg.Content
		case schema.User:
			call.User += msg.Content
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	if err := m.failFirst; err != nil {
		m.failFirst = nil
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	out, err := m.respond(call)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(out, nil), nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Calls 返回调用记录副本
func (m *ChatModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CountCalls 统计系统提示中包含 marker 的调用次数
func (m *ChatModel) CountCalls(marker string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.Contains(c.System, marker) {
			n++
		}
	}
	return n
}

// Factory 总是返回同一个模型的 ChatModelFactory
type Factory struct {
	Model model.BaseChatModel
	Err   error
}

func (f *Factory) Get(_ context.Context, _ string) (model.BaseChatModel, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Model == nil {
		return nil, fmt.Errorf("no chat model")
	}
	return f.Model, nil
}

// 提示词中用于区分判定类型的标记
const (
	MarkerRouter        = "routing a user question"
	MarkerRelevance     = "relevance of a retrieved document"
	MarkerHallucination = "grounded in and supported"
	MarkerAnswer        = "addresses and resolves"
	MarkerGenerate      = "question-answering tasks"
)

// Script 按判定类型分发的脚本化应答
type Script struct {
	Route         func(question string) string
	Relevance     func(user string) string
	Hallucination func(user string) string
	Answer        func(user string) string
	Generate      func(user string) string
}

// Responder 将 Script 转为 Responder；未配置的判定返回错误
func (s Script) Responder() Responder {
	return func(call Call) (string, error) {
		switch {
		case strings.Contains(call.System, MarkerRouter) && s.Route != nil:
			return s.Route(call.User), nil
		case strings.Contains(call.System, MarkerRelevance) && s.Relevance != nil:
			return s.Relevance(call.User), nil
		case strings.Contains(call.System, MarkerHallucination) && s.Hallucination != nil:
			return s.Hallucination(call.User), nil
		case strings.Contains(call.System, MarkerAnswer) && s.Answer != nil:
			return s.Answer(call.User), nil
		case strings.Contains(call.System, MarkerGenerate) && s.Generate != nil:
			return s.Generate(call.User), nil
		}
		return "", fmt.Errorf("unscripted call: %.60s", call.System)
	}
}
