package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag-api/internal/config"
	rediscache "agentic-rag-api/internal/infrastructure/persistence/redis"
	wfmodel "agentic-rag-api/internal/workflow/model"
	"agentic-rag-api/pkg/metrics"
)

func newTestTavily(t *testing.T, handler http.HandlerFunc) *TavilyClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newTavilyClient(resty.New().SetBaseURL(srv.URL), "tvly-test", "", 0)
}

func TestNewTavilyClient_Validation(t *testing.T) {
	_, err := NewTavilyClient(nil)
	assert.Error(t, err)

	_, err = NewTavilyClient(&config.WebSearchConfig{Provider: "tavily"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewTavilyClient(&config.WebSearchConfig{Provider: "bing", APIKey: "k"})
	assert.Error(t, err)

	c, err := NewTavilyClient(&config.WebSearchConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxResults, c.maxResults)
	assert.Equal(t, defaultSearchDepth, c.searchDepth)
}

func TestTavilyClient_Search(t *testing.T) {
	var got tavilyRequest
	c := newTestTavily(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"q","results":[
			{"title":"A","url":"https://a","content":"alpha","score":0.9},
			{"title":"B","url":"https://b","content":"beta","score":0.8},
			{"title":"C","url":"https://c","content":"gamma","score":0.7}
		]}`))
	})

	results, err := c.Search(context.Background(), "  what is agent memory  ", 2)
	require.NoError(t, err)

	assert.Equal(t, "tvly-test", got.APIKey)
	assert.Equal(t, "what is agent memory", got.Query)
	assert.Equal(t, 2, got.MaxResults)
	assert.Equal(t, "basic", got.SearchDepth)

	require.Len(t, results, 2)
	assert.Equal(t, "https://a", results[0].URL)
	assert.Equal(t, "beta", results[1].Content)
}

func TestTavilyClient_SearchErrors(t *testing.T) {
	c := newTestTavily(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid key"}`))
	})

	_, err := c.Search(context.Background(), "q", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = c.Search(context.Background(), "   ", 0)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

type countingSearcher struct {
	calls   int32
	results []wfmodel.SearchResult
	err     error
}

func (s *countingSearcher) Search(context.Context, string, int) ([]wfmodel.SearchResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.results, s.err
}

func newRedisCache(t *testing.T) (*rediscache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rediscache.NewCache(rediscache.NewClientFromRedis(rdb)), mr
}

func TestCachedSearcher_ReusesResults(t *testing.T) {
	cache, mr := newRedisCache(t)
	inner := &countingSearcher{results: []wfmodel.SearchResult{{URL: "https://a", Content: "alpha"}}}
	s := NewCachedSearcher(inner, cache, time.Minute)

	for i := 0; i < 3; i++ {
		results, err := s.Search(context.Background(), "q", 2)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "alpha", results[0].Content)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
	assert.True(t, mr.Exists(CacheKey("q", 2)))

	// max_results 不同视为不同查询
	_, err := s.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

type blockingSearcher struct {
	countingSearcher
	release chan struct{}
}

func (s *blockingSearcher) Search(ctx context.Context, q string, n int) ([]wfmodel.SearchResult, error) {
	<-s.release
	return s.countingSearcher.Search(ctx, q, n)
}

func TestCachedSearcher_CountsOnlyRedisHits(t *testing.T) {
	cache, _ := newRedisCache(t)
	inner := &blockingSearcher{
		countingSearcher: countingSearcher{results: []wfmodel.SearchResult{{Content: "alpha"}}},
		release:          make(chan struct{}),
	}
	s := NewCachedSearcher(inner, cache, time.Minute)
	hits := metrics.WebSearchTotal.WithLabelValues(ProviderTavily, "cache_hit")
	before := testutil.ToFloat64(hits)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Search(context.Background(), "shared", 2)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
	assert.Equal(t, before, testutil.ToFloat64(hits))

	_, err := s.Search(context.Background(), "shared", 2)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(hits))
}

func TestCachedSearcher_ErrorsAreNotCached(t *testing.T) {
	cache, mr := newRedisCache(t)
	inner := &countingSearcher{err: errors.New("upstream down")}
	s := NewCachedSearcher(inner, cache, time.Minute)

	_, err := s.Search(context.Background(), "q", 2)
	require.Error(t, err)
	assert.False(t, mr.Exists(CacheKey("q", 2)))
}

func TestCachedSearcher_CorruptEntryBypassesCache(t *testing.T) {
	cache, mr := newRedisCache(t)
	require.NoError(t, mr.Set(CacheKey("q", 2), "not-json"))
	inner := &countingSearcher{results: []wfmodel.SearchResult{{Content: "fresh"}}}
	s := NewCachedSearcher(inner, cache, time.Minute)

	results, err := s.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fresh", results[0].Content)
}

func TestNewCachedSearcher_DisabledReturnsInner(t *testing.T) {
	inner := &countingSearcher{}
	assert.Same(t, inner, NewCachedSearcher(inner, nil, time.Minute))

	cache, _ := newRedisCache(t)
	assert.Same(t, inner, NewCachedSearcher(inner, cache, 0))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("q", 2), CacheKey(" q ", 2))
	assert.NotEqual(t, CacheKey("q", 2), CacheKey("q", 3))
	assert.Len(t, CacheKey("q", 2), len(cacheKeyPrefix)+64)
}
