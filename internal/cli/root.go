// Package cli implements the docrouter CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"docrouter/internal/config"
	"docrouter/internal/engine"
	"docrouter/internal/llm"
	"docrouter/internal/memory"
	"docrouter/internal/query"
	"docrouter/internal/retrieval"
	"docrouter/internal/router"
	"docrouter/internal/session"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "docrouter",
	Short: "Confidence-routed document question answering",
	Long: "Answers questions over an indexed document collection. Queries are " +
		"normalized, routed by retrieval confidence and answered with " +
		"multi-turn conversation context.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config path (default: $DOCROUTER_CONFIG or ~/.docrouter/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Session database path (overrides config)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func loadConfig() (*config.AppConfig, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("DOCROUTER_CONFIG")
	}
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".docrouter", "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.SessionDB = dbPath
	}
	return cfg, nil
}

func openStore(cfg *config.AppConfig) (*session.Store, error) {
	return session.NewStore(cfg.SessionDB)
}

// buildEngine assembles the full pipeline from config.
func buildEngine(cfg *config.AppConfig, store *session.Store) *engine.Engine {
	logger := slog.Default()

	index := retrieval.NewQdrantIndex(retrieval.QdrantConfig{
		URL:        cfg.Retrieval.Qdrant.URL,
		APIKey:     cfg.Retrieval.Qdrant.APIKey,
		Collection: cfg.Retrieval.Qdrant.Collection,
		Timeout:    time.Duration(cfg.Retrieval.Qdrant.TimeoutSecs) * time.Second,
	})

	var embedder retrieval.Embedder
	switch cfg.Retrieval.Embedder.Provider {
	case "openai":
		embedder = retrieval.NewOpenAIEmbedder(cfg.Retrieval.Embedder.BaseURL,
			os.Getenv(cfg.LLM.APIKeyEnv), cfg.Retrieval.Embedder.Model, 0)
	default:
		embedder = retrieval.NewOllamaEmbedder(cfg.Retrieval.Embedder.Model)
	}
	retriever := retrieval.NewClient(index, embedder, logger)

	generator := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  os.Getenv(cfg.LLM.APIKeyEnv),
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	}, logger)

	var decider router.Decider
	if cfg.Router.UseDecisionLLM {
		decider = generator
	}
	rt := router.New(router.Config{
		HighConfidence:      cfg.Router.HighConfidence,
		ConfidenceThreshold: cfg.Router.ConfidenceThreshold,
		MinContextChars:     cfg.Router.MinContextChars,
		ContextCapChars:     cfg.Router.ContextCapChars,
	}, decider, generator, logger)

	mem := memory.New(cfg.Memory.MaxHistory, cfg.Memory.ContextWindow, logger)

	var engineStore engine.Store
	if store != nil {
		engineStore = store
	}
	return engine.New(
		query.NewAnalyzer(logger),
		retriever,
		rt,
		generator,
		mem,
		engineStore,
		engine.Config{
			TopK:              cfg.Retrieval.TopK,
			DistanceThreshold: cfg.Retrieval.DistanceThreshold,
			MemoryBudget:      cfg.Memory.ContextBudget,
			Temperature:       float32(cfg.LLM.Temperature),
			MaxTokens:         cfg.LLM.MaxTokens,
		},
		logger,
	)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
