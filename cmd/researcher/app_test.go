package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"researcher/internal/config"
	"researcher/internal/search"
	"researcher/internal/search/duckduckgo"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.VectorStore.SQLite.Path = filepath.Join(t.TempDir(), "memory_db")
	cfg.Log.File = ""
	return cfg
}

func TestFactoriesRejectUnknownTypes(t *testing.T) {
	_, err := newEmbedder(config.EmbedderConfig{Type: "word2vec"})
	assert.Error(t, err)
	_, err = newStorage(config.VectorStoreConfig{Type: "faiss"})
	assert.Error(t, err)
	_, err = newWebSearcher(config.SearchConfig{Type: "bing"}, nil)
	assert.Error(t, err)
	_, err = newCompleter(config.LLMConfig{Type: "anthropic"})
	assert.Error(t, err)
}

func TestNewWebSearcherWrapsCache(t *testing.T) {
	web, err := newWebSearcher(config.SearchConfig{Type: "duckduckgo", CacheTTLSecs: 60}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &search.Cached{}, web)

	web, err = newWebSearcher(config.SearchConfig{Type: "duckduckgo"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &duckduckgo.Searcher{}, web)
}

func TestBuildAppRequiresLLMKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKeyEnv = "RESEARCHER_TEST_MISSING_KEY"
	t.Setenv("RESEARCHER_TEST_MISSING_KEY", "")
	_, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestBuildAppDegradesMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKeyEnv = "RESEARCHER_TEST_KEY"
	t.Setenv("RESEARCHER_TEST_KEY", "k")
	cfg.Embedder.Type = "word2vec"

	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.False(t, a.memory.Available())
	assert.Contains(t, a.memoryNote(), "word2vec")
}

func TestBuildAppWithSQLiteMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKeyEnv = "RESEARCHER_TEST_KEY"
	t.Setenv("RESEARCHER_TEST_KEY", "k")
	cfg.Memory.Probe = true

	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, a.memory.Available())
	assert.Equal(t, "Memory on.", a.memoryNote())
}

func TestMemoryClearCommand(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(path, cfg))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "memory", "clear"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "memory cleared")
}
