// Package memory keeps a bounded multi-turn conversation history and
// assembles prior-turn context for new queries. All scoring is lexical;
// nothing here calls external services.
package memory

import (
	"crypto/md5"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"docrouter/internal/model"
)

const (
	// relevanceCutoff filters interactions out of context assembly.
	relevanceCutoff = 0.15

	// Relevance factor weights. They sum to 1.
	weightTopics   = 0.4
	weightSemantic = 0.3
	weightRecency  = 0.2
	weightSources  = 0.1

	recencyHorizon = 24 * time.Hour
)

// Stats summarizes memory activity since the last Clear.
type Stats struct {
	Interactions     int     `json:"interactions"`
	ActiveTopics     int     `json:"active_topics"`
	TopicSwitches    int     `json:"topic_switches"`
	TopicClusters    int     `json:"topic_clusters"`
	ContextUsed      int     `json:"context_used"`
	AvgContextRunes  float64 `json:"avg_context_runes"`
	CacheHits        int     `json:"cache_hits"`
	CacheMisses      int     `json:"cache_misses"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	Summarizations   int     `json:"summarizations"`
	TopicCoherence   float64 `json:"topic_coherence"`
	AvgTurnRunes     float64 `json:"avg_turn_runes"`
}

// Memory is a FIFO conversation store with topic tracking. Safe for
// concurrent use.
type Memory struct {
	mu            sync.Mutex
	maxHistory    int
	contextWindow int
	history       []model.Interaction
	currentTopics map[string]bool
	transitions   []model.TopicShift
	topicWeights  map[string]float64
	topicClusters map[string]int
	contextCache  map[string]string
	topicCache    map[string]map[string]float64
	stats         Stats
	logger        *slog.Logger
	now           func() time.Time
}

func New(maxHistory, contextWindow int, logger *slog.Logger) *Memory {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	if contextWindow <= 0 {
		contextWindow = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		maxHistory:    maxHistory,
		contextWindow: contextWindow,
		currentTopics: map[string]bool{},
		topicWeights:  map[string]float64{},
		topicClusters: map[string]int{},
		contextCache:  map[string]string{},
		topicCache:    map[string]map[string]float64{},
		logger:        logger,
		now:           time.Now,
	}
}

// Record stores a completed turn, evicting the oldest once maxHistory is
// reached, and updates the topic tracking state.
func (m *Memory) Record(query, response string, sources []model.SourceRef) model.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(query, response, sources, ulid.Make().String(), m.now())
}

// Restore replays persisted turns, oldest first, rebuilding topic state as
// if they had been recorded live. Identities and timestamps are kept so
// recency scoring sees the real turn times.
func (m *Memory) Restore(history []model.Interaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range history {
		id := it.ID
		if id == "" {
			id = ulid.Make().String()
		}
		ts := it.Timestamp
		if ts.IsZero() {
			ts = m.now()
		}
		m.record(it.Query, it.Response, it.Sources, id, ts)
	}
	m.contextCache = map[string]string{}
}

func (m *Memory) record(query, response string, sources []model.SourceRef, id string, ts time.Time) model.Interaction {
	queryTopics := m.cachedTopics(query)
	responseTopics := m.cachedTopics(response)
	all := map[string]float64{}
	for t, w := range queryTopics {
		all[t] = w
	}
	for t, w := range responseTopics {
		all[t] = w
	}
	for t, w := range all {
		if prev, ok := m.topicWeights[t]; ok {
			m.topicWeights[t] = (prev + w) / 2
		} else {
			m.topicWeights[t] = w
		}
	}

	it := model.Interaction{
		ID:             id,
		Timestamp:      ts,
		Query:          query,
		Response:       response,
		Sources:        sources,
		QueryTopics:    keySet(queryTopics),
		ResponseTopics: keySet(responseTopics),
		TopicWeights:   all,
		SemanticHash:   semanticHash(query, response),
		Length:         len([]rune(query)) + len([]rune(response)),
	}

	m.history = append(m.history, it)
	if len(m.history) > m.maxHistory {
		m.history = m.history[1:]
	}

	newTopics := keySet(all)
	similarity := topicSimilarity(m.currentTopics, newTopics)
	if similarity < 0.3 {
		if len(m.currentTopics) > 0 {
			m.transitions = append(m.transitions, model.TopicShift{
				From:       setToSlice(m.currentTopics),
				To:         setToSlice(newTopics),
				Similarity: similarity,
				Kind:       classifyTransition(m.currentTopics, newTopics),
				At:         ts,
			})
			m.stats.TopicSwitches++
		}
		m.updateClusters(m.currentTopics, newTopics)
	}
	m.currentTopics = newTopics
	m.stats.Interactions++

	return it
}

// Context assembles prior-turn context for a query within a rune budget.
// Results are cached per query and budget until Clear.
func (m *Memory) Context(query string, budget int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return ""
	}
	if budget <= 0 {
		budget = 1500
	}

	cacheKey := fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s_%d", query, budget))))
	if cached, ok := m.contextCache[cacheKey]; ok {
		m.stats.CacheHits++
		return cached
	}
	m.stats.CacheMisses++

	queryTopics := keySet(m.cachedTopics(query))
	queryHash := semanticHash(query, "")

	window := m.contextWindow * 2
	if window > len(m.history) {
		window = len(m.history)
	}
	recent := m.history[len(m.history)-window:]

	type scored struct {
		it        model.Interaction
		relevance float64
	}
	var relevant []scored
	for _, it := range recent {
		rel := m.relevance(query, queryTopics, queryHash, it)
		if rel > relevanceCutoff {
			relevant = append(relevant, scored{it, rel})
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].relevance > relevant[j].relevance
	})

	var parts []string
	used := 0
	for _, s := range relevant {
		part := renderPart(s.it, s.relevance)
		partLen := len([]rune(part))
		if used+partLen <= budget {
			parts = append(parts, part)
			used += partLen
			continue
		}
		if len(parts) == 0 {
			// Even the best interaction does not fit whole.
			runes := []rune(part)
			cut := budget - 50
			if cut < 0 {
				cut = 0
			}
			if cut > len(runes) {
				cut = len(runes)
			}
			parts = append(parts, string(runes[:cut])+"...\n")
		}
		break
	}

	context := ""
	if len(parts) > 0 {
		context = "КОНТЕКСТ РАЗГОВОРА:\n" + strings.Join(parts, "")
	}
	if len([]rune(context)) > budget*9/10 {
		context = summarizeLines(context, budget)
		m.stats.Summarizations++
	}

	m.contextCache[cacheKey] = context
	if context != "" {
		m.stats.ContextUsed++
		n := float64(m.stats.ContextUsed)
		m.stats.AvgContextRunes = (m.stats.AvgContextRunes*(n-1) + float64(len([]rune(context)))) / n
	}
	m.logger.Debug("assembled conversation context",
		"interactions", len(relevant), "runes", len([]rune(context)))
	return context
}

// relevance scores how much a past interaction should inform the current
// query. Held under m.mu.
func (m *Memory) relevance(query string, queryTopics map[string]bool, queryHash string, it model.Interaction) float64 {
	itTopics := map[string]bool{}
	for t := range it.QueryTopics {
		itTopics[t] = true
	}
	for t := range it.ResponseTopics {
		itTopics[t] = true
	}
	topics := topicSimilarity(queryTopics, itTopics)

	var semantic float64
	if it.SemanticHash != "" && it.SemanticHash == queryHash {
		semantic = 0.5
	} else {
		semantic = textSimilarity(query, it.Query)
	}

	recency := m.recencyScore(it.Timestamp)

	sourceOverlap := 0.0
	if len(it.Sources) > 0 {
		sourceOverlap = 0.1
	}

	return topics*weightTopics + semantic*weightSemantic +
		recency*weightRecency + sourceOverlap*weightSources
}

// recencyScore decays linearly from 1 to 0 over the horizon.
func (m *Memory) recencyScore(ts time.Time) float64 {
	age := m.now().Sub(ts)
	if age < 0 {
		age = 0
	}
	score := 1 - age.Hours()/recencyHorizon.Hours()
	if score < 0 {
		return 0
	}
	return score
}

// renderPart formats one past interaction for inclusion in context. The
// preview length depends on relevance, and sources appear only for strongly
// relevant turns.
func renderPart(it model.Interaction, relevance float64) string {
	previewLimit := 150
	if relevance > 0.5 {
		previewLimit = 300
	}
	responseRunes := []rune(it.Response)
	preview := it.Response
	truncated := false
	if len(responseRunes) > previewLimit {
		preview = string(responseRunes[:previewLimit])
		truncated = true
	}

	var b strings.Builder
	b.WriteString("Предыдущий вопрос: ")
	b.WriteString(it.Query)
	b.WriteString("\n")
	b.WriteString("Ответ: ")
	b.WriteString(preview)
	if truncated {
		b.WriteString("...")
	}
	b.WriteString("\n")
	if relevance > 0.4 && len(it.Sources) > 0 {
		files := make([]string, 0, 2)
		for _, s := range it.Sources {
			files = append(files, s.File)
			if len(files) == 2 {
				break
			}
		}
		b.WriteString("Источники: ")
		b.WriteString(strings.Join(files, ","))
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	return b.String()
}

// summarizeLines compresses context by keeping only the query, answer and
// source marker lines, then hard-truncating if still over budget.
func summarizeLines(context string, budget int) string {
	var kept []string
	for _, line := range strings.Split(context, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "вопрос:") ||
			strings.Contains(lower, "ответ:") ||
			strings.Contains(lower, "источники:") {
			kept = append(kept, line)
		}
	}
	out := strings.Join(kept, "\n")
	runes := []rune(out)
	if len(runes) > budget {
		cut := budget - 50
		if cut < 0 {
			cut = 0
		}
		out = string(runes[:cut]) + "\n[Контекст сокращен...]\n"
	}
	return out
}

// DetectShift compares the query's topics against the last two turns and
// reports whether the conversation jumped to a new subject.
func (m *Memory) DetectShift(query string) model.ShiftReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return model.ShiftReport{}
	}

	current := keySet(m.cachedTopics(query))
	recent := map[string]bool{}
	start := len(m.history) - 2
	if start < 0 {
		start = 0
	}
	for _, it := range m.history[start:] {
		for t := range it.QueryTopics {
			recent[t] = true
		}
		for t := range it.ResponseTopics {
			recent[t] = true
		}
	}

	inter := 0
	for t := range current {
		if recent[t] {
			inter++
		}
	}
	union := len(current) + len(recent) - inter

	confidence := 0.0
	if union > 0 {
		confidence = 1 - float64(inter)/float64(union)
	}

	fresh := map[string]bool{}
	for t := range current {
		if !recent[t] {
			fresh[t] = true
		}
	}

	report := model.ShiftReport{
		Shifted:       confidence > 0.7,
		Confidence:    confidence,
		CurrentTopics: setToSlice(current),
		RecentTopics:  setToSlice(recent),
		NewTopics:     setToSlice(fresh),
	}
	if report.Shifted {
		m.logger.Info("conversation shift detected", "confidence", confidence)
	}
	return report
}

// History returns a copy of the stored interactions, oldest first.
func (m *Memory) History() []model.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Interaction, len(m.history))
	copy(out, m.history)
	return out
}

// Transitions returns a copy of the recorded topic shifts.
func (m *Memory) Transitions() []model.TopicShift {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TopicShift, len(m.transitions))
	copy(out, m.transitions)
	return out
}

// Stats returns a snapshot of memory activity.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.ActiveTopics = len(m.currentTopics)
	s.TopicClusters = len(m.topicClusters)
	s.TopicCoherence = m.coherence()
	if total := s.CacheHits + s.CacheMisses; total > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(total)
	}
	if len(m.history) > 0 {
		total := 0
		for _, it := range m.history {
			total += it.Length
		}
		s.AvgTurnRunes = float64(total) / float64(len(m.history))
	}
	return s
}

// coherence averages the topic similarity between consecutive transitions.
// Held under m.mu.
func (m *Memory) coherence() float64 {
	if len(m.transitions) < 2 {
		return 1
	}
	sum := 0.0
	for i := 0; i < len(m.transitions)-1; i++ {
		sum += topicSimilarity(sliceToSet(m.transitions[i].To), sliceToSet(m.transitions[i+1].To))
	}
	return sum / float64(len(m.transitions)-1)
}

// Clear drops the history, topic state and every cache. This is the only
// way cached contexts are invalidated.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.currentTopics = map[string]bool{}
	m.transitions = nil
	m.topicWeights = map[string]float64{}
	m.topicClusters = map[string]int{}
	m.contextCache = map[string]string{}
	m.topicCache = map[string]map[string]float64{}
	m.stats = Stats{}
	m.logger.Info("conversation memory cleared")
}

// cachedTopics memoizes weighted topic extraction per text. Held under m.mu.
func (m *Memory) cachedTopics(text string) map[string]float64 {
	key := fmt.Sprintf("%x", md5.Sum([]byte(text)))
	if topics, ok := m.topicCache[key]; ok {
		return topics
	}
	topics := extractTopicsWeighted(text)
	m.topicCache[key] = topics
	return topics
}

// updateClusters counts co-occurring topic pairs across a transition. Held
// under m.mu.
func (m *Memory) updateClusters(old, next map[string]bool) {
	for o := range old {
		for n := range next {
			if o == n {
				continue
			}
			a, b := o, n
			if a > b {
				a, b = b, a
			}
			m.topicClusters[a+"|"+b]++
		}
	}
}

func keySet[V any](m map[string]V) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func sliceToSet(s []string) map[string]bool {
	out := make(map[string]bool, len(s))
	for _, v := range s {
		out[v] = true
	}
	return out
}
