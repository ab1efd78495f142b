package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the OpenAI-compatible chat completions backend.
type LLMConfig struct {
	Type        string  `yaml:"type"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries"`
}

// SearchConfig selects the web search provider.
type SearchConfig struct {
	Type         string `yaml:"type"`
	APIKeyEnv    string `yaml:"api_key_env,omitempty"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension,omitempty"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string        `yaml:"type"`
	Collection string        `yaml:"collection"`
	SQLite     *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig locates the local memory database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MemoryConfig controls the semantic memory.
type MemoryConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Probe    bool    `yaml:"probe"`
	MinScore float64 `yaml:"min_score"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Production bool   `yaml:"production"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Memory      MemoryConfig      `yaml:"memory"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	// Start from defaults so omitted sections and booleans keep their default.
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/researcher/config.yaml.
// If neither exists, it writes defaults to ~/.config/researcher/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "researcher", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		LLM: LLMConfig{
			Type:        "openai",
			BaseURL:     "https://api.groq.com/openai/v1",
			APIKeyEnv:   "GROQ_API_KEY",
			Model:       "llama-3.1-8b-instant",
			MaxTokens:   150,
			Temperature: 0.3,
			TimeoutSecs: 60,
			MaxRetries:  2,
		},
		Search:      SearchConfig{Type: "duckduckgo", TimeoutSecs: 15},
		Embedder:    EmbedderConfig{Type: "hashing", Dimension: 384},
		VectorStore: VectorStoreConfig{Type: "sqlite", Collection: "research_assistant", SQLite: &SQLiteConfig{Path: "./memory_db"}},
		Memory:      MemoryConfig{Enabled: true},
		Server:      ServerConfig{Address: ":8000"},
		Log:         LogConfig{Level: "info", File: "researcher.log"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	d := defaultConfig()
	if cfg.LLM.Type == "" {
		cfg.LLM.Type = d.LLM.Type
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = d.LLM.BaseURL
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = d.LLM.APIKeyEnv
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = d.LLM.Model
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = d.LLM.TimeoutSecs
	}
	if cfg.Search.Type == "" {
		cfg.Search.Type = d.Search.Type
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = d.Search.TimeoutSecs
	}
	if cfg.Search.APIKeyEnv == "" {
		switch cfg.Search.Type {
		case "brave":
			cfg.Search.APIKeyEnv = "BRAVE_API_KEY"
		case "serper":
			cfg.Search.APIKeyEnv = "SERPER_API_KEY"
		}
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = d.Embedder.Type
	}
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = d.Embedder.Dimension
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = d.VectorStore.Type
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = d.VectorStore.Collection
	}
	if cfg.VectorStore.Type == "sqlite" {
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = d.VectorStore.SQLite.Path
		}
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = d.Server.Address
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
}

// Seconds converts a *_secs field to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
