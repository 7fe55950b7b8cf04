// Package config 服务配置：结构体定义、分层加载与校验。
// 字段只通过 viper 的 mapstructure 解码，键名即 YAML 键名。
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Vector        VectorConfig        `mapstructure:"vector"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	WebSearch     WebSearchConfig     `mapstructure:"websearch"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Messaging     MessagingConfig     `mapstructure:"messaging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Security      SecurityConfig      `mapstructure:"security"`
	Features      FeaturesConfig      `mapstructure:"features"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTP HTTPServerConfig `mapstructure:"http"`
}

// HTTPServerConfig WriteTimeout 需覆盖一次完整的流式问答
type HTTPServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig 运行历史与入库任务的存储
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig 限流、搜索缓存与任务队列共用
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type VectorConfig struct {
	Milvus MilvusConfig `mapstructure:"milvus"`
}

// MilvusConfig 集合名为 CollectionPrefix_Collection；索引固定为 HNSW + COSINE
type MilvusConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	CollectionPrefix   string `mapstructure:"collection_prefix"`
	Collection         string `mapstructure:"collection"`
	HNSWM              int    `mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `mapstructure:"hnsw_ef_construction"`
	SearchEf           int    `mapstructure:"search_ef"`
}

// LLMConfig 按名称登记的模型提供商
type LLMConfig struct {
	DefaultProvider string                    `mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig OpenAI 兼容接口的连接参数
type ProviderConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig Endpoint 为空时使用 OpenAI 官方地址
type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	Endpoint  string `mapstructure:"endpoint"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
}

// WebSearchConfig Tavily 搜索参数；CacheTTL 作用于 Redis 结果缓存
type WebSearchConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxResults  int           `mapstructure:"max_results"`
	SearchDepth string        `mapstructure:"search_depth"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// RetrievalConfig 检索与切分默认参数
type RetrievalConfig struct {
	SearchType     string   `mapstructure:"search_type"`
	K              int      `mapstructure:"k"`
	FetchK         int      `mapstructure:"fetch_k"`
	LambdaMult     float64  `mapstructure:"lambda_mult"`
	ScoreThreshold float64  `mapstructure:"score_threshold"`
	ChunkSize      int      `mapstructure:"chunk_size"`
	ChunkOverlap   int      `mapstructure:"chunk_overlap"`
	DefaultURLs    []string `mapstructure:"default_urls"`
}

// WorkflowConfig 问答工作流配置
type WorkflowConfig struct {
	LLMProvider         string  `mapstructure:"llm_provider"`
	Temperature         float64 `mapstructure:"temperature"`
	MaxGenerations      int     `mapstructure:"max_generations"`
	IrrelevantThreshold float64 `mapstructure:"irrelevant_threshold"`
}

type MessagingConfig struct {
	RedisStream RedisStreamConfig `mapstructure:"redis_stream"`
}

// RedisStreamConfig 入库任务流的消费参数
type RedisStreamConfig struct {
	MaxLen        int           `mapstructure:"max_len"`
	BlockTimeout  time.Duration `mapstructure:"block_timeout"`
	ClaimInterval time.Duration `mapstructure:"claim_interval"`
	RetryLimit    int           `mapstructure:"retry_limit"`
	RetryBackoff  BackoffConfig `mapstructure:"retry_backoff"`
}

// BackoffConfig 失败重试的指数退避
type BackoffConfig struct {
	Initial    time.Duration `mapstructure:"initial"`
	Max        time.Duration `mapstructure:"max"`
	Multiplier float64       `mapstructure:"multiplier"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig Format 取 json 或 text
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig OTLP gRPC 导出
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// RateLimitConfig 限流配置（滑动窗口）
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// CORSConfig 来源为空时允许任意来源且不带凭证
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type FeaturesConfig struct {
	RunHistory     RunHistoryFeature     `mapstructure:"run_history"`
	WebSearchCache WebSearchCacheFeature `mapstructure:"websearch_cache"`
}

// RunHistoryFeature 问答记录落库开关
type RunHistoryFeature struct {
	Enabled bool `mapstructure:"enabled"`
}

// WebSearchCacheFeature 联网搜索结果缓存开关
type WebSearchCacheFeature struct {
	Enabled bool `mapstructure:"enabled"`
}
