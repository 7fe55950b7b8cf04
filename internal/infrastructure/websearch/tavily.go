// Package websearch 提供联网搜索服务实现（Tavily）
package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"agentic-rag-api/internal/config"
	wfmodel "agentic-rag-api/internal/workflow/model"
	"agentic-rag-api/pkg/logger"
	"agentic-rag-api/pkg/metrics"
)

const (
	ProviderTavily = "tavily"

	defaultBaseURL     = "https://api.tavily.com"
	defaultSearchDepth = "basic"
	defaultMaxResults  = 2
	defaultTimeout     = 20 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("websearch api key is empty")
	ErrEmptyQuery    = errors.New("websearch query is empty")
)

var tracer = otel.Tracer("websearch")

// TavilyClient Tavily 搜索 API 客户端
type TavilyClient struct {
	http        *resty.Client
	apiKey      string
	searchDepth string
	maxResults  int
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Query   string                 `json:"query"`
	Results []wfmodel.SearchResult `json:"results"`
}

// NewTavilyClient 根据配置创建客户端
func NewTavilyClient(cfg *config.WebSearchConfig) (*TavilyClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("websearch config is nil")
	}
	if p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p != "" && p != ProviderTavily {
		return nil, fmt.Errorf("unsupported websearch provider: %s", cfg.Provider)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && (r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests)
		})

	return newTavilyClient(httpClient, cfg.APIKey, cfg.SearchDepth, cfg.MaxResults), nil
}

func newTavilyClient(httpClient *resty.Client, apiKey, depth string, maxResults int) *TavilyClient {
	if strings.TrimSpace(depth) == "" {
		depth = defaultSearchDepth
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &TavilyClient{
		http:        httpClient,
		apiKey:      apiKey,
		searchDepth: depth,
		maxResults:  maxResults,
	}
}

// Search 执行一次搜索；maxResults <= 0 时使用配置值
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]wfmodel.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	ctx, span := tracer.Start(ctx, "websearch.tavily.Search")
	span.SetAttributes(
		attribute.Int("websearch.max_results", maxResults),
		attribute.String("websearch.depth", c.searchDepth),
	)
	defer span.End()

	var out tavilyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tavilyRequest{
			APIKey:      c.apiKey,
			Query:       query,
			MaxResults:  maxResults,
			SearchDepth: c.searchDepth,
		}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		metrics.WebSearchTotal.WithLabelValues(ProviderTavily, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	if resp.IsError() {
		metrics.WebSearchTotal.WithLabelValues(ProviderTavily, "error").Inc()
		err := fmt.Errorf("tavily search: status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
		span.RecordError(err)
		return nil, err
	}

	results := make([]wfmodel.SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		if strings.TrimSpace(r.Content) == "" && strings.TrimSpace(r.URL) == "" {
			continue
		}
		results = append(results, r)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	metrics.WebSearchTotal.WithLabelValues(ProviderTavily, "ok").Inc()
	span.SetAttributes(attribute.Int("websearch.results", len(results)))
	logger.Debug(ctx, "web search completed", "provider", ProviderTavily, "results", len(results))
	return results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
