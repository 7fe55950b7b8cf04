package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("RAG_TEST_HOST", "milvus.internal")

	assert.Equal(t, "host: milvus.internal", expandEnv("host: ${RAG_TEST_HOST}"))
	assert.Equal(t, "port: 19530", expandEnv("port: ${RAG_TEST_UNSET_PORT:19530}"))
	assert.Equal(t, "key: ", expandEnv("key: ${RAG_TEST_UNSET_KEY:}"))
	assert.Equal(t, "raw: ${RAG_TEST_UNSET_RAW}", expandEnv("raw: ${RAG_TEST_UNSET_RAW}"))
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "app:\n  name: rag-test\n")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "rag-test", cfg.App.Name)
	assert.Equal(t, "mmr", cfg.Retrieval.SearchType)
	assert.Equal(t, 6, cfg.Retrieval.K)
	assert.Equal(t, 20, cfg.Retrieval.FetchK)
	assert.InDelta(t, 0.5, cfg.Retrieval.LambdaMult, 1e-9)
	assert.InDelta(t, 0.3, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Len(t, cfg.Retrieval.DefaultURLs, 3)
	assert.Equal(t, 3, cfg.Workflow.MaxGenerations)
	assert.InDelta(t, 0.6, cfg.Workflow.IrrelevantThreshold, 1e-9)
	assert.Equal(t, 2, cfg.WebSearch.MaxResults)
	assert.Equal(t, 30*time.Minute, cfg.WebSearch.CacheTTL)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
}

func TestLoadFromMergesEnvironmentOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "workflow:\n  max_generations: 3\nretrieval:\n  k: 6\n")
	writeConfig(t, dir, "config.staging.yaml", "workflow:\n  max_generations: 5\n")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Workflow.MaxGenerations)
	assert.Equal(t, 6, cfg.Retrieval.K)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestLoadFromEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "retrieval:\n  k: 6\n")
	t.Setenv("RETRIEVAL_K", "8")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Retrieval.K)
	assert.Equal(t, 128, cfg.Vector.Milvus.SearchEf)
}

func TestLoadFromMissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Retrieval: RetrievalConfig{SearchType: "mmr", K: 6, FetchK: 20, LambdaMult: 0.5, ChunkSize: 500, ChunkOverlap: 100},
			Workflow:  WorkflowConfig{MaxGenerations: 3, IrrelevantThreshold: 0.6},
			WebSearch: WebSearchConfig{MaxResults: 2},
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"unknown search type": func(c *Config) { c.Retrieval.SearchType = "bm25" },
		"zero k":              func(c *Config) { c.Retrieval.K = 0 },
		"fetch_k below k":     func(c *Config) { c.Retrieval.FetchK = 3 },
		"lambda above one":    func(c *Config) { c.Retrieval.LambdaMult = 1.5 },
		"overlap too large":   func(c *Config) { c.Retrieval.ChunkOverlap = 500 },
		"no generations":      func(c *Config) { c.Workflow.MaxGenerations = 0 },
		"zero threshold":      func(c *Config) { c.Workflow.IrrelevantThreshold = 0 },
		"no search results":   func(c *Config) { c.WebSearch.MaxResults = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
