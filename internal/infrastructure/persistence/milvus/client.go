// Package milvus 基于 Milvus 的片段向量存储
package milvus

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agentic-rag-api/internal/config"
)

var tracer = otel.Tracer("milvus")

// Client 持有 SDK 连接与片段集合的完整名称
type Client struct {
	sdk        client.Client
	cfg        *config.MilvusConfig
	collection string
}

// NewClient 连接 Milvus；只有同时配置用户名和密码时才启用认证
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	sdkCfg := client.Config{Address: addr}
	if cfg.User != "" && cfg.Password != "" {
		sdkCfg.Username = cfg.User
		sdkCfg.Password = cfg.Password
	}

	sdk, err := client.NewClient(ctx, sdkCfg)
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", addr, err)
	}
	return &Client{sdk: sdk, cfg: cfg, collection: collectionName(cfg)}, nil
}

// collectionName 前缀与集合名以下划线连接，未配置集合名时用 CollectionPassages
func collectionName(cfg *config.MilvusConfig) string {
	name := cfg.Collection
	if name == "" {
		name = CollectionPassages
	}
	if cfg.CollectionPrefix == "" {
		return name
	}
	return cfg.CollectionPrefix + "_" + name
}

// Collection 片段集合的完整名称
func (c *Client) Collection() string {
	return c.collection
}

func (c *Client) Close() error {
	return c.sdk.Close()
}

// HealthCheck 以一次 HasCollection 调用确认连接可用
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.hasCollection(ctx); err != nil {
		return fmt.Errorf("milvus health check: %w", err)
	}
	return nil
}

func (c *Client) span(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "milvus."+op,
		trace.WithAttributes(attribute.String("collection", c.collection)))
}

func (c *Client) hasCollection(ctx context.Context) (bool, error) {
	ctx, span := c.span(ctx, "HasCollection")
	defer span.End()

	ok, err := c.sdk.HasCollection(ctx, c.collection)
	if err != nil {
		span.RecordError(err)
	}
	return ok, err
}

func (c *Client) loadCollection(ctx context.Context) error {
	ctx, span := c.span(ctx, "LoadCollection")
	defer span.End()

	return c.sdk.LoadCollection(ctx, c.collection, false)
}

func (c *Client) dropCollection(ctx context.Context) error {
	ctx, span := c.span(ctx, "DropCollection")
	defer span.End()

	return c.sdk.DropCollection(ctx, c.collection)
}
