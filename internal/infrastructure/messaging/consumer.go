package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agentic-rag-api/pkg/logger"
	"agentic-rag-api/pkg/metrics"
)

const (
	readBatch    = 10
	pendingBatch = 20
	minReclaim   = 5 * time.Minute
)

var errRetriesExceeded = errors.New("message exceeded max retries")

// MessageHandler 返回错误时消息保留在 PEL 中等待重投
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 零值字段在 NewConsumer 中补默认值
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// Consumer 消费者组中的一个成员。
// 处理失败的消息按指数退避重投，投递次数达到 RetryLimit 后写入死信流并确认。
// 其他成员长时间未确认的消息（worker 崩溃）由 reclaimStale 接管。
type Consumer struct {
	client      *redis.Client
	cfg         ConsumerConfig
	reclaimIdle time.Duration

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	started  bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	return &Consumer{
		client:      client,
		cfg:         cfg,
		reclaimIdle: max(minReclaim, 2*cfg.Backoff.Max),
		handlers:    make(map[string]MessageHandler),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// RegisterHandler 按消息类型注册处理函数
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 确保消费者组存在后在后台消费，不阻塞；每个 Consumer 只能启动一次
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("consumer %s already started", c.cfg.ConsumerName)
	}
	c.started = true
	c.mu.Unlock()

	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	go func() {
		defer close(c.done)
		c.run(ctx)
	}()
	return nil
}

// Stop 通知消费循环退出并等待正在处理的消息完成；可重复调用
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if started {
		<-c.done
	}
}

func (c *Consumer) stream() string { return string(c.cfg.Stream) }

func (c *Consumer) group() string { return string(c.cfg.Group) }

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream(), c.group(), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group(), err)
	}
	return nil
}

func (c *Consumer) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Consumer) run(ctx context.Context) {
	log := logger.FromContext(ctx).With("stream", c.stream(), "consumer", c.cfg.ConsumerName)
	log.Info("consumer started", "group", c.group())
	defer log.Info("consumer stopped")

	lastClaim := time.Time{}
	for !c.stopping(ctx) {
		c.processDuePending(ctx)
		if time.Since(lastClaim) >= c.cfg.ClaimInterval {
			c.reclaimStale(ctx)
			lastClaim = time.Now()
		}

		err := c.poll(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		log.Error("failed to read from stream", "error", err.Error())
		select {
		case <-ctx.Done():
		case <-c.stopCh:
		case <-time.After(time.Second):
		}
	}
}

// poll 读取一批新消息并逐条处理；阻塞超时返回 nil
func (c *Consumer) poll(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group(),
		Consumer: c.cfg.ConsumerName,
		Streams:  []string{c.stream(), ">"},
		Count:    readBatch,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, s := range streams {
		for _, xmsg := range s.Messages {
			c.processMessage(ctx, xmsg)
		}
	}
	return nil
}

func decodeMessage(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("stream entry %s has no data field", xmsg.ID)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode stream entry %s: %w", xmsg.ID, err)
	}
	return &msg, nil
}

func (c *Consumer) handler(msgType string) (MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[msgType]
	return h, ok
}

func (c *Consumer) processMessage(ctx context.Context, xmsg redis.XMessage) {
	msg, err := decodeMessage(xmsg)
	if err != nil {
		logger.Error(ctx, "dropping undecodable message", err, "message_id", xmsg.ID)
		c.settle(ctx, xmsg.ID, "dropped")
		return
	}

	// 发布方的 span 作为父 span，API 请求与 worker 处理在同一条链路上
	ctx, span := tracer.Start(msg.ExtractTrace(ctx), "consumer.processMessage",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("stream", c.stream()),
			attribute.String("stream.message_id", xmsg.ID),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	ctx = logger.WithContext(ctx, logger.JobIDKey, msg.ID)
	if reqID := msg.GetMetadata(MetaRequestID); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}

	handle, ok := c.handler(msg.Type)
	if !ok {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.settle(ctx, xmsg.ID, "dropped")
		return
	}

	if err := handle(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "handler failed", err, "message_id", msg.ID)
		c.handleFailure(ctx, xmsg.ID, msg, err)
		return
	}
	c.settle(ctx, xmsg.ID, "ok")
}

// settle 确认消息并按结果计数
func (c *Consumer) settle(ctx context.Context, id, result string) {
	metrics.RedisStreamProcessed.WithLabelValues(c.stream(), result).Inc()
	c.ack(ctx, id)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream(), c.group(), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

// handleFailure 未达上限时消息留在 PEL 中等待退避后重投，否则移入死信流
func (c *Consumer) handleFailure(ctx context.Context, streamID string, msg *Message, cause error) {
	deliveries := c.deliveryCount(ctx, streamID)
	if deliveries < c.cfg.RetryLimit {
		metrics.RedisStreamProcessed.WithLabelValues(c.stream(), "retry").Inc()
		logger.Info(ctx, "message left pending for retry", "message_id", msg.ID, "deliveries", deliveries)
		return
	}

	logger.Warn(ctx, "message moved to DLQ after max retries", "message_id", msg.ID, "deliveries", deliveries)
	c.moveToDLQ(ctx, msg, cause)
	c.ack(ctx, streamID)
}

// deliveryCount 取 XPENDING 中的投递次数，查询失败按 0 处理
func (c *Consumer) deliveryCount(ctx context.Context, streamID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream(),
		Group:  c.group(),
		Start:  streamID,
		End:    streamID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

func (c *Consumer) moveToDLQ(ctx context.Context, msg *Message, cause error) {
	data, err := json.Marshal(DeadLetter{
		OriginalStream: c.stream(),
		Data:           msg,
		Error:          cause.Error(),
		FailedAt:       time.Now().Unix(),
	})
	if err != nil {
		logger.Error(ctx, "failed to encode DLQ entry", err, "message_id", msg.ID)
		return
	}

	err = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]any{"data": string(data)},
	}).Err()
	if err != nil {
		logger.Error(ctx, "failed to write DLQ entry", err, "message_id", msg.ID)
		return
	}
	metrics.RedisStreamProcessed.WithLabelValues(c.stream(), "dlq").Inc()
}

// claim 将 pending 消息转给当前消费者；exhausted 为真时不再处理，直接进入死信流
func (c *Consumer) claim(ctx context.Context, id string, minIdle time.Duration, exhausted bool) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream(),
		Group:    c.group(),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", id)
		return
	}

	for _, xmsg := range claimed {
		if !exhausted {
			c.processMessage(ctx, xmsg)
			continue
		}
		if msg, err := decodeMessage(xmsg); err == nil {
			c.moveToDLQ(ctx, msg, errRetriesExceeded)
		}
		c.ack(ctx, xmsg.ID)
	}
}

// pending consumer 为空时列出整个组的 PEL
func (c *Consumer) pending(ctx context.Context, consumer string) []redis.XPendingExt {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   c.stream(),
		Group:    c.group(),
		Start:    "-",
		End:      "+",
		Count:    pendingBatch,
		Consumer: consumer,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Error(ctx, "failed to query pending messages", err)
	}
	return pending
}

// processDuePending 重投本消费者名下退避时间已到的失败消息
func (c *Consumer) processDuePending(ctx context.Context) {
	for _, p := range c.pending(ctx, c.cfg.ConsumerName) {
		deliveries := int(p.RetryCount)
		if deliveries >= c.cfg.RetryLimit {
			c.claim(ctx, p.ID, 0, true)
			continue
		}
		if wait := c.cfg.Backoff.CalculateBackoff(deliveries); p.Idle >= wait {
			c.claim(ctx, p.ID, wait, false)
		}
	}
}

// reclaimStale 接管其他消费者空闲超过 reclaimIdle 的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.cfg.ConsumerName || p.Idle < c.reclaimIdle {
			continue
		}
		c.claim(ctx, p.ID, c.reclaimIdle, int(p.RetryCount) >= c.cfg.RetryLimit)
	}
}

// MonitorDLQ 每分钟检查一次死信流长度，超过阈值时告警；阻塞直到 ctx 取消或 Stop
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	dlq := c.cfg.Stream.DLQStream()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		length, err := c.client.XLen(ctx, dlq).Result()
		if err != nil {
			logger.Debug(ctx, "failed to read DLQ length", "stream", dlq, "error", err.Error())
			continue
		}
		if length > alertThreshold {
			logger.Warn(ctx, "DLQ has pending messages", "stream", dlq, "count", length)
		}
	}
}
