package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"agentic-rag-api/pkg/logger"
	"agentic-rag-api/pkg/metrics"
)

// Cache Read-Through 字节缓存
type Cache struct {
	client *Client
	group  singleflight.Group
}

func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

type loaded struct {
	data []byte
	hit  bool
}

// GetOrLoad 命中直接返回；未命中时同一 key 的并发调用只执行一次 loader。
// hit 仅在值来自 Redis 时为 true，共享同一次加载的调用方与发起方一致。
// Redis 读失败降级为直接加载，写失败只记日志；loader 的错误不缓存。
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) ([]byte, error)) (data []byte, hit bool, err error) {
	ctx, span := tracer.Start(ctx, "cache.GetOrLoad", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	result := "miss"
	switch {
	case err == nil:
		result = "hit"
	case !errors.Is(err, redis.Nil):
		result = "error"
		span.RecordError(err)
		logger.Warn(ctx, "cache read failed, loading directly", "key", key, "error", err.Error())
	}
	metrics.CacheRequestsTotal.WithLabelValues(result).Inc()
	span.SetAttributes(attribute.String("cache.result", result))
	if result == "hit" {
		return val, true, nil
	}

	// 共享加载不随首个调用方取消，其余等待者仍能拿到结果
	loadCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(key, func() (any, error) {
		if val, err := c.client.rdb.Get(loadCtx, key).Bytes(); err == nil {
			return loaded{data: val, hit: true}, nil
		}
		data, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := c.client.rdb.Set(loadCtx, key, data, ttl).Err(); err != nil {
			logger.Warn(loadCtx, "cache write failed", "key", key, "error", err.Error())
		}
		return loaded{data: data}, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	l := v.(loaded)
	return l.data, l.hit, nil
}
