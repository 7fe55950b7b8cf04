package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	wfmodel "agentic-rag-api/internal/workflow/model"
	workflowport "agentic-rag-api/internal/workflow/port"
	"agentic-rag-api/pkg/logger"
	"agentic-rag-api/pkg/metrics"
)

const cacheKeyPrefix = "websearch:"

// ResultCache Read-Through 缓存（Redis 实现见 persistence/redis.Cache）
type ResultCache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) ([]byte, error)) (data []byte, hit bool, err error)
}

// CachedSearcher 为搜索结果加一层缓存，相同查询在 TTL 内只请求一次
type CachedSearcher struct {
	next     workflowport.WebSearcher
	cache    ResultCache
	ttl      time.Duration
	provider string
}

// NewCachedSearcher 包装搜索器；cache 为 nil 或 ttl <= 0 时直接返回原搜索器
func NewCachedSearcher(next workflowport.WebSearcher, cache ResultCache, ttl time.Duration) workflowport.WebSearcher {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &CachedSearcher{next: next, cache: cache, ttl: ttl, provider: ProviderTavily}
}

func (s *CachedSearcher) Search(ctx context.Context, query string, maxResults int) ([]wfmodel.SearchResult, error) {
	raw, hit, err := s.cache.GetOrLoad(ctx, CacheKey(query, maxResults), s.ttl, func(ctx context.Context) ([]byte, error) {
		results, err := s.next.Search(ctx, query, maxResults)
		if err != nil {
			return nil, err
		}
		return json.Marshal(results)
	})
	if err != nil {
		return nil, err
	}

	var results []wfmodel.SearchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		// 缓存内容损坏时绕过缓存
		logger.Warn(ctx, "discarding undecodable web search cache entry", "error", err.Error())
		return s.next.Search(ctx, query, maxResults)
	}
	if hit {
		metrics.WebSearchTotal.WithLabelValues(s.provider, "cache_hit").Inc()
	}
	return results, nil
}

// CacheKey 缓存键：sha256(规范化查询|max_results)
func CacheKey(query string, maxResults int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", strings.TrimSpace(query), maxResults)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
