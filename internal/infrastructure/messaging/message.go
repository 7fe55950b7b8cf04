// Package messaging 提供基于 Redis Streams 的消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// 元数据键
const (
	MetaRequestID = "request_id"
)

// Message 流内消息；Metadata 同时承载 W3C trace context（traceparent 等）
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建消息，payload 以 JSON 编码
func NewMessage(id, msgType string, payload any) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 读取元数据，不存在返回空串
func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

// InjectTrace 把当前 span 的上下文写入元数据
func (m *Message) InjectTrace(ctx context.Context) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(m.Metadata))
}

// ExtractTrace 以元数据中的 trace context 作为远端父 span
func (m *Message) ExtractTrace(ctx context.Context) context.Context {
	if len(m.Metadata) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(m.Metadata))
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream Redis Stream 键名
type Stream string

const (
	StreamIngest Stream = "stream:rag:ingest"
)

// DLQStream 对应的死信流键名
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

type ConsumerGroup string

const (
	ConsumerGroupIngestWorker ConsumerGroup = "cg-ingest-worker"
)

// MessageTypeIngest 入库任务消息类型
const MessageTypeIngest = "ingest"

// DeadLetter 死信流条目，原消息完整保留便于人工重放
type DeadLetter struct {
	OriginalStream string   `json:"original_stream"`
	Data           *Message `json:"data"`
	Error          string   `json:"error"`
	FailedAt       int64    `json:"failed_at"`
}

// IngestJobMessage 入库任务消息
type IngestJobMessage struct {
	JobID string   `json:"job_id"`
	URLs  []string `json:"urls"`
	Reset bool     `json:"reset,omitempty"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 1s 起步，每次翻倍，上限 1m
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 计算第 retryCount 次重试前的等待时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			return c.Max
		}
	}
	return backoff
}
