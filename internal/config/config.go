// Package config loads, validates and persists engine configuration. The
// numeric routing and memory cutoffs live here on purpose: they are policy
// parameters, not structural invariants.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RetrievalConfig controls the fragment search policy.
type RetrievalConfig struct {
	TopK              int            `yaml:"top_k"`
	DistanceThreshold float64        `yaml:"distance_threshold"`
	Qdrant            QdrantConfig   `yaml:"qdrant"`
	Embedder          EmbedderConfig `yaml:"embedder"`
}

// QdrantConfig contains connection details for the vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider"` // ollama or openai
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// RouterConfig holds the answerability tier cutoffs.
type RouterConfig struct {
	HighConfidence      float64 `yaml:"high_confidence"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MinContextChars     int     `yaml:"min_context_chars"`
	ContextCapChars     int     `yaml:"context_cap_chars"`
	UseDecisionLLM      bool    `yaml:"use_decision_llm"`
}

// MemoryConfig bounds the conversation memory.
type MemoryConfig struct {
	MaxHistory    int `yaml:"max_history"`
	ContextWindow int `yaml:"context_window"`
	ContextBudget int `yaml:"context_budget"`
}

// LLMConfig configures the generation service client.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Router    RouterConfig    `yaml:"router"`
	Memory    MemoryConfig    `yaml:"memory"`
	LLM       LLMConfig       `yaml:"llm"`
	SessionDB string          `yaml:"session_db"`
}

// Load reads a config from the given path; a missing file yields defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
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

// Validate rejects configurations that would break routing invariants.
func (c *AppConfig) Validate() error {
	if c.Router.ConfidenceThreshold < 0 || c.Router.ConfidenceThreshold > 1 {
		return errors.New("router.confidence_threshold must be in [0,1]")
	}
	if c.Router.HighConfidence < 0 || c.Router.HighConfidence > 1 {
		return errors.New("router.high_confidence must be in [0,1]")
	}
	if c.Retrieval.DistanceThreshold < 0 || c.Retrieval.DistanceThreshold > 2 {
		return errors.New("retrieval.distance_threshold must be in [0,2]")
	}
	if c.Retrieval.TopK <= 0 {
		return errors.New("retrieval.top_k must be positive")
	}
	if c.Memory.MaxHistory <= 0 {
		return errors.New("memory.max_history must be positive")
	}
	return nil
}

// Default returns the configuration matching the documented policy defaults.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.DistanceThreshold == 0 {
		cfg.Retrieval.DistanceThreshold = 0.7
	}
	if cfg.Retrieval.Qdrant.URL == "" {
		cfg.Retrieval.Qdrant.URL = "http://localhost:6333"
	}
	if cfg.Retrieval.Qdrant.Collection == "" {
		cfg.Retrieval.Qdrant.Collection = "documents"
	}
	if cfg.Retrieval.Qdrant.TimeoutSecs == 0 {
		cfg.Retrieval.Qdrant.TimeoutSecs = 15
	}
	if cfg.Retrieval.Embedder.Provider == "" {
		cfg.Retrieval.Embedder.Provider = "ollama"
	}
	if cfg.Retrieval.Embedder.Model == "" {
		cfg.Retrieval.Embedder.Model = "nomic-embed-text"
	}
	if cfg.Router.HighConfidence == 0 {
		cfg.Router.HighConfidence = 0.4
	}
	if cfg.Router.ConfidenceThreshold == 0 {
		cfg.Router.ConfidenceThreshold = 0.15
	}
	if cfg.Router.MinContextChars == 0 {
		cfg.Router.MinContextChars = 50
	}
	if cfg.Router.ContextCapChars == 0 {
		cfg.Router.ContextCapChars = 3000
	}
	if cfg.Memory.MaxHistory == 0 {
		cfg.Memory.MaxHistory = 10
	}
	if cfg.Memory.ContextWindow == 0 {
		cfg.Memory.ContextWindow = 3
	}
	if cfg.Memory.ContextBudget == 0 {
		cfg.Memory.ContextBudget = 1500
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.SessionDB == "" {
		home, _ := os.UserHomeDir()
		cfg.SessionDB = filepath.Join(home, ".docrouter", "sessions.db")
	}
}
