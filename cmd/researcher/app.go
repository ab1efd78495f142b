package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"researcher/internal/agents"
	"researcher/internal/config"
	"researcher/internal/domain"
	"researcher/internal/embedding"
	"researcher/internal/embedding/hashing"
	embopenai "researcher/internal/embedding/openai"
	"researcher/internal/llm"
	llmopenai "researcher/internal/llm/openai"
	"researcher/internal/memory"
	"researcher/internal/metrics"
	"researcher/internal/search"
	"researcher/internal/search/brave"
	"researcher/internal/search/duckduckgo"
	"researcher/internal/search/serper"
	"researcher/internal/service"
	"researcher/internal/vectorstore"
	vmemory "researcher/internal/vectorstore/memory"
	"researcher/internal/vectorstore/qdrant"
	"researcher/internal/vectorstore/sqlite"
)

// app holds the components built once per process.
type app struct {
	log      *zap.Logger
	metrics  *metrics.Recorder
	memory   domain.MemoryCapability
	store    *memory.Store
	pipeline *service.Pipeline
}

func buildApp(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*app, error) {
	rec := metrics.New()
	capability, store := openMemory(ctx, cfg, rec, log)

	completer, err := newCompleter(cfg.LLM)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	web, err := newWebSearcher(cfg.Search, log)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	pipeline := service.NewPipeline(service.Agents{
		Manager:    agents.NewManager(completer, capability, log),
		Research:   agents.NewResearcher(web, capability, log),
		Validation: agents.NewValidator(completer, log),
		Summary:    agents.NewSummarizer(completer, log),
	}, rec, log)

	return &app{log: log, metrics: rec, memory: capability, store: store, pipeline: pipeline}, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing memory", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// memoryNote is a one-line description of the memory capability for users.
func (a *app) memoryNote() string {
	if a.memory.Available() {
		return "Memory on."
	}
	return "Memory off: " + a.memory.Reason().Error()
}

func openMemory(ctx context.Context, cfg *config.AppConfig, rec *metrics.Recorder, log *zap.Logger) (domain.MemoryCapability, *memory.Store) {
	return memory.Open(ctx, memory.OpenConfig{
		Enabled: cfg.Memory.Enabled,
		Probe:   cfg.Memory.Probe,
		Options: memory.Options{MinScore: cfg.Memory.MinScore, Metrics: rec, Logger: log},
	},
		func() (embedding.Embedder, error) { return newEmbedder(cfg.Embedder) },
		func() (vectorstore.Storage, error) { return newStorage(cfg.VectorStore) },
	)
}

func newCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Type {
	case "openai", "":
		client, err := llmopenai.NewClient(llmopenai.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     config.Seconds(cfg.TimeoutSecs),
			MaxRetries:  cfg.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("llm init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
}

func newWebSearcher(cfg config.SearchConfig, log *zap.Logger) (domain.WebSearcher, error) {
	timeout := config.Seconds(cfg.TimeoutSecs)
	var web domain.WebSearcher
	switch cfg.Type {
	case "duckduckgo", "":
		web = duckduckgo.New(duckduckgo.Config{Timeout: timeout})
	case "brave":
		s, err := brave.New(brave.Config{APIKey: os.Getenv(cfg.APIKeyEnv), Timeout: timeout})
		if err != nil {
			return nil, err
		}
		web = s
	case "serper":
		s, err := serper.New(serper.Config{APIKey: os.Getenv(cfg.APIKeyEnv), Timeout: timeout})
		if err != nil {
			return nil, err
		}
		web = s
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Type)
	}
	return search.NewCached(web, config.Seconds(cfg.CacheTTLSecs), log), nil
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return embopenai.NewClient(embopenai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   config.Seconds(cfg.OpenAI.TimeoutSecs),
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newStorage(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "sqlite", "":
		dir := "memory_db"
		if cfg.SQLite != nil && cfg.SQLite.Path != "" {
			dir = filepath.Clean(cfg.SQLite.Path)
		}
		return sqlite.NewStorage(sqlite.Config{DataDir: dir, Collection: cfg.Collection})
	case "memory":
		return vmemory.NewStorage(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Collection,
			Timeout:    config.Seconds(cfg.Qdrant.TimeoutSecs),
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}
