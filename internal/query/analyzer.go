// Package query normalizes user queries: cleanup, spell correction, language
// detection, intent classification, keyword extraction and expansion.
package query

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"docrouter/internal/model"
)

const maxExpansions = 5

const (
	minContextRunes = 10
	minKeywordRunes = 3
)

var (
	spacesRe  = regexp.MustCompile(`\s+`)
	allowedRe = regexp.MustCompile(`[^\p{L}\p{N}_\s?!.,:;-]`)
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// Analyzer produces a QueryAnalysis from raw query text. It holds only
// static tables, so a single Analyzer is safe for concurrent use and
// analysis is fully deterministic.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer. A nil logger falls back to slog.Default.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// Analyze runs the normalization pipeline. It never fails: any internal
// problem degrades to an analysis that passes the query through unchanged
// with a general intent.
func (a *Analyzer) Analyze(q string, priorContext string) (res model.QueryAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("query analysis failed", "err", fmt.Sprint(r))
			res = fallbackAnalysis(q)
		}
	}()

	cleaned := cleanQuery(q)
	// Correction can turn a misspelled token into an interrogative, so the
	// question-mark check runs again on the corrected form.
	corrected := ensureQuestionMark(spellCorrect(cleaned))
	lang := detectLanguage(corrected)
	intent := classifyIntent(corrected)
	keywords := extractKeywords(corrected)
	expansions := expand(corrected, lang, intent, keywords)

	final := corrected
	hasContext := false
	if priorContext != "" {
		final, hasContext = integrateContext(corrected, priorContext, lang)
	}

	a.logger.Info("query analyzed",
		"intent", intent, "language", lang, "expansions", len(expansions))

	return model.QueryAnalysis{
		Original:   q,
		Cleaned:    cleaned,
		Corrected:  corrected,
		FinalForm:  final,
		Language:   lang,
		Intent:     intent,
		Keywords:   keywords,
		Expansions: expansions,
		HasContext: hasContext,
	}
}

func fallbackAnalysis(q string) model.QueryAnalysis {
	return model.QueryAnalysis{
		Original:   q,
		Cleaned:    q,
		Corrected:  q,
		FinalForm:  q,
		Language:   model.LangRussian,
		Intent:     model.IntentGeneral,
		Expansions: []string{q},
	}
}

// cleanQuery collapses whitespace, strips stray symbols and appends a
// question mark when an interrogative word appears without one.
func cleanQuery(q string) string {
	q = spacesRe.ReplaceAllString(strings.TrimSpace(q), " ")
	q = allowedRe.ReplaceAllString(q, "")
	return ensureQuestionMark(q)
}

func ensureQuestionMark(q string) string {
	if strings.HasSuffix(q, "?") {
		return q
	}
	lower := strings.ToLower(q)
	for _, w := range interrogatives {
		if strings.Contains(lower, w) {
			return q + "?"
		}
	}
	return q
}

func spellCorrect(q string) string {
	words := strings.Split(q, " ")
	for i, w := range words {
		if fix, ok := spellCorrections[strings.ToLower(w)]; ok {
			words[i] = fix
		}
	}
	return strings.Join(words, " ")
}

// detectLanguage counts characters per alphabet and takes the majority.
// Ties and alphabet-free input default to Russian.
func detectLanguage(q string) model.Language {
	var cyrillic, latin int
	for _, r := range strings.ToLower(q) {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case r >= 'a' && r <= 'z':
			latin++
		}
	}
	if cyrillic > latin {
		return model.LangRussian
	}
	if latin > 0 {
		return model.LangEnglish
	}
	return model.LangRussian
}

func classifyIntent(q string) model.Intent {
	lower := strings.ToLower(q)
	for _, rule := range intentRules {
		for _, p := range rule.patterns {
			if p.MatchString(lower) {
				return rule.intent
			}
		}
	}
	return model.IntentGeneral
}

// extractKeywords lowercases, strips punctuation and drops stop-words and
// short tokens.
func extractKeywords(q string) []string {
	clean := nonWordRe.ReplaceAllString(strings.ToLower(q), " ")
	var keywords []string
	for _, w := range strings.Fields(clean) {
		if stopWords[w] || len([]rune(w)) < minKeywordRunes {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// expand produces up to maxExpansions deduplicated query variants. The
// original query is always first so downstream ranking can prefer it.
func expand(q string, lang model.Language, intent model.Intent, keywords []string) []string {
	expansions := []string{q}

	if templates, ok := expansionTemplates[lang][intent]; ok {
		for _, kw := range keywords {
			for _, t := range templates {
				expansions = append(expansions, fmt.Sprintf(t, kw))
			}
		}
	}

	for _, kw := range keywords {
		for _, syn := range synonyms[kw] {
			if v := strings.ReplaceAll(q, kw, syn); v != q {
				expansions = append(expansions, v)
			}
		}
	}

	seen := make(map[string]bool, len(expansions))
	unique := expansions[:0]
	for _, e := range expansions {
		if !seen[e] {
			seen[e] = true
			unique = append(unique, e)
		}
	}
	if len(unique) > maxExpansions {
		unique = unique[:maxExpansions]
	}
	return unique
}

// integrateContext prefixes the query with terms shared between the query
// and the prior conversational context, biasing retrieval toward topic
// continuity. With no overlap the query is left unchanged.
func integrateContext(q, context string, lang model.Language) (string, bool) {
	if len([]rune(strings.TrimSpace(context))) < minContextRunes {
		return q, false
	}

	queryKw := extractKeywords(q)
	contextKw := make(map[string]bool)
	for _, kw := range extractKeywords(context) {
		contextKw[kw] = true
	}

	seen := make(map[string]bool)
	var overlap []string
	for _, kw := range queryKw {
		if contextKw[kw] && !seen[kw] {
			seen[kw] = true
			overlap = append(overlap, kw)
		}
	}
	if len(overlap) == 0 {
		return q, false
	}
	sort.Strings(overlap)

	prefix := "В контексте %s: %s"
	if lang == model.LangEnglish {
		prefix = "In the context of %s: %s"
	}
	return fmt.Sprintf(prefix, strings.Join(overlap, " "), q), true
}

// Stats reports the sizes of the static lookup tables.
func (a *Analyzer) Stats() map[string]int {
	return map[string]int{
		"spell_corrections": len(spellCorrections),
		"intent_rules":      len(intentRules),
		"stop_words":        len(stopWords),
		"languages":         len(expansionTemplates),
	}
}
