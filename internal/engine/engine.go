// Package engine wires query analysis, retrieval, routing, generation and
// conversation memory into the ask pipeline.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"docrouter/internal/memory"
	"docrouter/internal/model"
	"docrouter/internal/query"
	"docrouter/internal/router"
)

// Retriever finds fragments for a query. Implementations never fail; an
// empty slice stands in for any upstream problem.
type Retriever interface {
	Search(ctx context.Context, query string, k int, distanceThreshold float64, sourceFiles []string) []model.Fragment
}

// Answerer generates the final answer text.
type Answerer interface {
	Answer(ctx context.Context, question, docContext, memoryContext string, temperature float32, maxTokens int) (string, error)
}

// Store persists completed interactions per session.
type Store interface {
	Append(ctx context.Context, sessionID string, it model.Interaction) error
}

// Config holds the pipeline knobs not owned by a component.
type Config struct {
	TopK              int
	DistanceThreshold float64
	MemoryBudget      int // runes of prior-conversation context
	Temperature       float32
	MaxTokens         int
}

// Result is the outcome of one ask. Answer is empty when the router declined.
type Result struct {
	Analysis    model.QueryAnalysis
	Decision    model.RoutingDecision
	Answer      string
	Sources     []model.SourceRef
	Suggestions []string
	Shift       model.ShiftReport
}

// Engine runs the ask pipeline. Construct with New; the zero value is not
// usable.
type Engine struct {
	analyzer  *query.Analyzer
	retriever Retriever
	router    *router.Router
	answerer  Answerer
	memory    *memory.Memory
	store     Store // optional
	cfg       Config
	logger    *slog.Logger
}

func New(analyzer *query.Analyzer, retriever Retriever, rt *router.Router,
	answerer Answerer, mem *memory.Memory, store Store, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.DistanceThreshold == 0 {
		cfg.DistanceThreshold = 0.7
	}
	if cfg.MemoryBudget <= 0 {
		cfg.MemoryBudget = 1500
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &Engine{
		analyzer:  analyzer,
		retriever: retriever,
		router:    rt,
		answerer:  answerer,
		memory:    mem,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// Ask runs one query through the full pipeline. A turn is recorded in memory
// and the session store only after an answer is actually produced; declined
// or failed turns leave no trace.
func (e *Engine) Ask(ctx context.Context, sessionID, rawQuery string, sourceFiles []string) (Result, error) {
	var res Result

	res.Shift = e.memory.DetectShift(rawQuery)
	memContext := e.memory.Context(rawQuery, e.cfg.MemoryBudget)

	res.Analysis = e.analyzer.Analyze(rawQuery, memContext)
	e.logger.Debug("query analyzed",
		"language", res.Analysis.Language,
		"intent", res.Analysis.Intent,
		"final", res.Analysis.FinalForm)

	fragments := e.retriever.Search(ctx, res.Analysis.FinalForm,
		e.cfg.TopK, e.cfg.DistanceThreshold, sourceFiles)

	res.Decision = e.router.Route(ctx, res.Analysis, fragments)
	e.logger.Info("query routed",
		"can_answer", res.Decision.CanAnswer,
		"confidence", res.Decision.Confidence,
		"fragments", res.Decision.SourceCount)

	if !res.Decision.CanAnswer {
		return res, nil
	}

	answer, err := e.answerer.Answer(ctx, rawQuery, res.Decision.Context, memContext,
		e.cfg.Temperature, e.cfg.MaxTokens)
	if err != nil {
		return res, fmt.Errorf("generate answer: %w", err)
	}
	res.Answer = answer
	res.Sources = collectSources(fragments)

	it := e.memory.Record(rawQuery, answer, res.Sources)
	if e.store != nil {
		if err := e.store.Append(ctx, sessionID, it); err != nil {
			e.logger.Warn("session persistence failed", "session", sessionID, "err", err)
		}
	}
	res.Suggestions = e.memory.Suggestions(rawQuery, answer)

	return res, nil
}

// Memory exposes the conversation memory for inspection commands.
func (e *Engine) Memory() *memory.Memory { return e.memory }

// Router exposes the router so the threshold can be tuned at runtime.
func (e *Engine) Router() *router.Router { return e.router }

// collectSources deduplicates fragment source files in retrieval order.
func collectSources(fragments []model.Fragment) []model.SourceRef {
	seen := map[string]bool{}
	var out []model.SourceRef
	for _, f := range fragments {
		if f.SourceFile == "" || seen[f.SourceFile] {
			continue
		}
		seen[f.SourceFile] = true
		out = append(out, model.SourceRef{File: f.SourceFile, Page: f.Attrs["page"]})
	}
	return out
}
