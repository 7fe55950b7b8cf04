package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 从 $CONFIG_DIR（默认 configs）加载配置。
// 优先级由低到高：内置默认值、config.yaml、config.$APP_ENV.yaml、环境变量。
func Load() (*Config, error) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "configs"
	}
	return LoadFrom(dir)
}

// LoadFrom 从指定目录加载配置
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// RETRIEVAL_K 覆盖 retrieval.k
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Observability.Logging.Level = lvl
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFile 展开 ${VAR:default} 后读入 viper；首个文件 Read，之后的文件 Merge
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	reader := strings.NewReader(expandEnv(string(content)))
	if v.ConfigFileUsed() != "" {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("merge config %s: %w", path, err)
		}
		return nil
	}
	if err := v.ReadConfig(reader); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	v.SetConfigFile(path)
	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符，未定义且无默认值时保留原样
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := envPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok {
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
}

// Validate 校验无法自洽的配置值
func (c *Config) Validate() error {
	r := c.Retrieval
	switch strings.ToLower(r.SearchType) {
	case "similarity", "mmr", "diversity":
	default:
		return fmt.Errorf("retrieval.search_type: unsupported value %q", r.SearchType)
	}
	if r.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", r.K)
	}
	if r.FetchK < r.K {
		return fmt.Errorf("retrieval.fetch_k (%d) must be >= k (%d)", r.FetchK, r.K)
	}
	if r.LambdaMult < 0 || r.LambdaMult > 1 {
		return fmt.Errorf("retrieval.lambda_mult must be within [0,1], got %v", r.LambdaMult)
	}
	if r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap (%d) must be < chunk_size (%d)", r.ChunkOverlap, r.ChunkSize)
	}

	w := c.Workflow
	if w.MaxGenerations < 1 {
		return fmt.Errorf("workflow.max_generations must be >= 1, got %d", w.MaxGenerations)
	}
	if w.IrrelevantThreshold <= 0 || w.IrrelevantThreshold > 1 {
		return fmt.Errorf("workflow.irrelevant_threshold must be within (0,1], got %v", w.IrrelevantThreshold)
	}
	if c.WebSearch.MaxResults <= 0 {
		return fmt.Errorf("websearch.max_results must be positive, got %d", c.WebSearch.MaxResults)
	}
	return nil
}

// defaults 按配置段分组的兜底值，文件与环境变量都未提供时生效
var defaults = []struct {
	prefix string
	values map[string]any
}{
	{"app", map[string]any{"name": "agentic-rag-api", "version": "v0.0.0", "env": "development"}},
	{"server.http", map[string]any{
		"host": "0.0.0.0", "port": 8080,
		"read_timeout": "30s", "write_timeout": "180s", "idle_timeout": "120s",
	}},
	{"database.postgres", map[string]any{
		"host": "localhost", "port": 5432, "user": "postgres", "database": "agentic_rag", "ssl_mode": "disable",
		"max_open_conns": 20, "max_idle_conns": 5, "conn_max_lifetime": "30m", "conn_max_idle_time": "5m",
		"auto_migrate": true,
	}},
	{"cache.redis", map[string]any{
		"host": "localhost", "port": 6379, "db": 0, "pool_size": 50, "min_idle_conns": 5,
		"dial_timeout": "5s", "read_timeout": "3s", "write_timeout": "3s",
	}},
	{"vector.milvus", map[string]any{
		"host": "localhost", "port": 19530, "collection_prefix": "agentic_rag", "collection": "rag_chroma",
		"hnsw_m": 16, "hnsw_ef_construction": 200, "search_ef": 128,
	}},
	{"llm", map[string]any{"default_provider": "openai"}},
	{"embedding", map[string]any{"model": "text-embedding-3-small", "dimension": 1536, "batch_size": 64}},
	{"websearch", map[string]any{
		"base_url": "https://api.tavily.com", "max_results": 2, "search_depth": "basic",
		"timeout": "20s", "cache_ttl": "30m",
	}},
	{"retrieval", map[string]any{
		"search_type": "mmr", "k": 6, "fetch_k": 20, "lambda_mult": 0.5, "score_threshold": 0.3,
		"chunk_size": 500, "chunk_overlap": 100,
		"default_urls": []string{
			"https://lilianweng.github.io/posts/2023-06-23-agent/",
			"https://lilianweng.github.io/posts/2023-03-15-prompt-engineering/",
			"https://lilianweng.github.io/posts/2023-10-25-adv-attack-llm/",
		},
	}},
	{"workflow", map[string]any{"temperature": 0.0, "max_generations": 3, "irrelevant_threshold": 0.6}},
	{"messaging.redis_stream", map[string]any{
		"max_len": 10000, "block_timeout": "5s", "claim_interval": "30s", "retry_limit": 3,
		"retry_backoff.initial": "1s", "retry_backoff.max": "1m", "retry_backoff.multiplier": 2.0,
	}},
	{"observability", map[string]any{
		"logging.level": "info", "logging.format": "json",
		"tracing.enabled": false, "tracing.endpoint": "localhost:4317", "tracing.sample_rate": 1.0,
		"metrics.enabled": true, "metrics.path": "/metrics",
	}},
	{"security.rate_limit", map[string]any{"enabled": true, "limit": 30, "window": "1m"}},
	{"features", map[string]any{"run_history.enabled": true, "websearch_cache.enabled": true}},
}

func setDefaults(v *viper.Viper) {
	for _, group := range defaults {
		for key, val := range group.values {
			v.SetDefault(group.prefix+"."+key, val)
		}
	}
}
