// Package router decides whether retrieved fragments support answering a
// query. Confidence is derived from the single best fragment, never from an
// average: one excellent match outweighs any number of mediocre ones.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"docrouter/internal/model"
)

// Decider gives a binary verdict for borderline cases.
type Decider interface {
	Decide(ctx context.Context, query, docContext string) bool
}

// Summarizer condenses over-long context.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxChars int) (string, error)
}

// Config holds the tier cutoffs. MinContextChars and ContextCapChars count
// runes, not bytes.
type Config struct {
	HighConfidence      float64
	ConfidenceThreshold float64
	MinContextChars     int
	ContextCapChars     int
}

// Router applies the tiered answerability policy.
type Router struct {
	mu         sync.Mutex
	cfg        Config
	decider    Decider    // optional
	summarizer Summarizer // optional
	logger     *slog.Logger
}

func New(cfg Config, decider Decider, summarizer Summarizer, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HighConfidence == 0 {
		cfg.HighConfidence = 0.4
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.15
	}
	if cfg.MinContextChars == 0 {
		cfg.MinContextChars = 50
	}
	if cfg.ContextCapChars == 0 {
		cfg.ContextCapChars = 3000
	}
	return &Router{cfg: cfg, decider: decider, summarizer: summarizer, logger: logger}
}

// SetThreshold updates the lower confidence cutoff. Values outside [0,1] are
// rejected and the previous threshold stays in effect.
func (r *Router) SetThreshold(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("confidence threshold %.2f out of range [0,1]", v)
	}
	r.mu.Lock()
	r.cfg.ConfidenceThreshold = v
	r.mu.Unlock()
	return nil
}

// Threshold returns the current lower confidence cutoff.
func (r *Router) Threshold() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.ConfidenceThreshold
}

// Route evaluates fragments against the query analysis and produces a
// routing decision. It never fails: transport problems upstream surface here
// as an empty fragment list, which is a legitimate terminal state.
func (r *Router) Route(ctx context.Context, analysis model.QueryAnalysis, fragments []model.Fragment) model.RoutingDecision {
	r.mu.Lock()
	threshold := r.cfg.ConfidenceThreshold
	r.mu.Unlock()

	dec := model.RoutingDecision{
		Language: analysis.Language,
		Intent:   analysis.Intent,
	}

	if len(fragments) == 0 {
		dec.Reasoning = noDocumentsReason(analysis.Language)
		return dec
	}

	minDistance := fragments[0].Distance
	for _, f := range fragments[1:] {
		if f.Distance < minDistance {
			minDistance = f.Distance
		}
	}
	confidence := 1 - minDistance
	if confidence < 0 {
		confidence = 0
	}
	dec.Confidence = confidence
	dec.SourceCount = len(fragments)

	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = f.Content
	}
	rawContext := strings.Join(parts, "\n\n")
	contextLen := len([]rune(rawContext))
	dec.Context = r.capContext(ctx, rawContext)

	switch {
	case confidence >= r.cfg.HighConfidence:
		dec.CanAnswer = true
	case confidence >= threshold && contextLen > r.cfg.MinContextChars:
		if r.decider != nil {
			dec.CanAnswer = r.decider.Decide(ctx, analysis.FinalForm, dec.Context)
		} else {
			dec.CanAnswer = true
		}
	default:
		dec.CanAnswer = false
	}

	dec.Reasoning = routingReason(analysis, dec, threshold)
	return dec
}

// capContext enforces the context size cap, summarizing when a summarizer is
// available and truncating otherwise.
func (r *Router) capContext(ctx context.Context, text string) string {
	runes := []rune(text)
	if len(runes) <= r.cfg.ContextCapChars {
		return text
	}
	if r.summarizer != nil {
		summary, err := r.summarizer.Summarize(ctx, text, r.cfg.ContextCapChars)
		if err == nil && summary != "" {
			return summary
		}
		r.logger.Warn("context summarization failed, truncating", "err", err)
	}
	return string(runes[:r.cfg.ContextCapChars]) + "..."
}

// Explain renders a decision for display, in the language of the query.
func Explain(dec model.RoutingDecision) string {
	var b strings.Builder
	if dec.Language == model.LangRussian {
		if dec.CanAnswer {
			b.WriteString("Маршрут: ответ по документам\n")
		} else {
			b.WriteString("Маршрут: ответ невозможен\n")
		}
		fmt.Fprintf(&b, "Уверенность: %.2f\n", dec.Confidence)
		fmt.Fprintf(&b, "Фрагментов: %d\n", dec.SourceCount)
		fmt.Fprintf(&b, "Язык: %s\n", languageLabel(dec.Language))
		b.WriteString(dec.Reasoning)
	} else {
		if dec.CanAnswer {
			b.WriteString("Route: answer from documents\n")
		} else {
			b.WriteString("Route: cannot answer\n")
		}
		fmt.Fprintf(&b, "Confidence: %.2f\n", dec.Confidence)
		fmt.Fprintf(&b, "Fragments: %d\n", dec.SourceCount)
		fmt.Fprintf(&b, "Language: %s\n", languageLabel(dec.Language))
		b.WriteString(dec.Reasoning)
	}
	return b.String()
}

var intentLabels = map[model.Language]map[model.Intent]string{
	model.LangRussian: {
		model.IntentDefinition:   "определение",
		model.IntentComparison:   "сравнение",
		model.IntentProcedure:    "процедура",
		model.IntentQuantitative: "количественный",
		model.IntentTemporal:     "временной",
		model.IntentLocation:     "местоположение",
		model.IntentCausal:       "причинный",
		model.IntentGeneral:      "общий",
	},
	model.LangEnglish: {
		model.IntentDefinition:   "definition",
		model.IntentComparison:   "comparison",
		model.IntentProcedure:    "procedure",
		model.IntentQuantitative: "quantitative",
		model.IntentTemporal:     "temporal",
		model.IntentLocation:     "location",
		model.IntentCausal:       "causal",
		model.IntentGeneral:      "general",
	},
}

func intentLabel(lang model.Language, intent model.Intent) string {
	if label, ok := intentLabels[lang][intent]; ok {
		return label
	}
	return string(intent)
}

// languageNames render each language in itself, matching the language the
// surrounding reasoning is written in.
var languageNames = map[model.Language]string{
	model.LangRussian: "русский",
	model.LangEnglish: "English",
}

func languageLabel(lang model.Language) string {
	if name, ok := languageNames[lang]; ok {
		return name
	}
	return string(lang)
}

func noDocumentsReason(lang model.Language) string {
	if lang == model.LangRussian {
		return "Релевантные документы не найдены"
	}
	return "No relevant documents found"
}

func routingReason(analysis model.QueryAnalysis, dec model.RoutingDecision, threshold float64) string {
	intent := intentLabel(dec.Language, dec.Intent)
	lang := languageLabel(dec.Language)
	if dec.Language == model.LangRussian {
		if dec.CanAnswer {
			return fmt.Sprintf("Найдено %d релевантных фрагментов, уверенность %.2f, тип запроса: %s, язык: %s",
				dec.SourceCount, dec.Confidence, intent, lang)
		}
		if dec.Confidence < threshold {
			return fmt.Sprintf("Уверенность %.2f ниже порога %.2f, тип запроса: %s, язык: %s",
				dec.Confidence, threshold, intent, lang)
		}
		return fmt.Sprintf("Найденный контекст недостаточен для ответа, уверенность %.2f, тип запроса: %s, язык: %s",
			dec.Confidence, intent, lang)
	}
	if dec.CanAnswer {
		return fmt.Sprintf("Found %d relevant fragments, confidence %.2f, query type: %s, language: %s",
			dec.SourceCount, dec.Confidence, intent, lang)
	}
	if dec.Confidence < threshold {
		return fmt.Sprintf("Confidence %.2f is below the %.2f threshold, query type: %s, language: %s",
			dec.Confidence, threshold, intent, lang)
	}
	return fmt.Sprintf("Retrieved context is insufficient to answer, confidence %.2f, query type: %s, language: %s",
		dec.Confidence, intent, lang)
}
