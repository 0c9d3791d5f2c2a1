package memory

import (
	"fmt"
	"sort"
	"strings"
)

const maxSuggestions = 6

// Suggestions proposes follow-up questions for the turn that just completed.
// Candidates come from the turn's strongest topics, extracted entities, the
// query's phrasing and the recent questioning pattern, then get deduplicated
// with topic-matching ones first.
func (m *Memory) Suggestions(query, response string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	topics := m.cachedTopics(query + " " + response)
	var candidates []string

	type weighted struct {
		topic  string
		weight float64
	}
	ranked := make([]weighted, 0, len(topics))
	for t, w := range topics {
		ranked = append(ranked, weighted{t, w})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].topic < ranked[j].topic
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	for _, r := range ranked {
		if r.weight > 0.3 {
			candidates = append(candidates,
				fmt.Sprintf("Расскажите больше о %s", r.topic),
				fmt.Sprintf("Какие есть примеры %s?", r.topic),
				fmt.Sprintf("Как %s связано с другими вопросами?", r.topic),
				fmt.Sprintf("Какие проблемы связаны с %s?", r.topic),
			)
		}
	}

	entities := extractEntities(response)
	if len(entities) > 3 {
		entities = entities[:3]
	}
	for _, e := range entities {
		candidates = append(candidates,
			fmt.Sprintf("Что еще известно о %s?", e),
			fmt.Sprintf("Где можно найти информацию о %s?", e),
			fmt.Sprintf("Какие документы содержат информацию о %s?", e),
		)
	}

	candidates = append(candidates, flowSuggestions(query)...)
	candidates = append(candidates, m.evolutionSuggestions()...)
	if len(m.history) > 1 {
		candidates = append(candidates, m.patternSuggestions()...)
	}

	out := rankSuggestions(candidates, keySet(topics))
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// flowSuggestions keys follow-ups off the phrasing of the question itself.
func flowSuggestions(query string) []string {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, "что такое", "определение", "объясни"):
		return []string{
			"Какие есть примеры этого?",
			"Как это применяется на практике?",
		}
	case containsAny(lower, "как", "процедура", "алгоритм"):
		return []string{
			"Какие есть альтернативные способы?",
			"Какие могут быть проблемы?",
		}
	case containsAny(lower, "сколько", "количество", "число"):
		return []string{
			"Как изменялись эти показатели?",
			"С чем сравнить эти цифры?",
		}
	}
	return nil
}

// evolutionSuggestions surfaces a topic that keeps reappearing across the
// last few transitions. Held under m.mu.
func (m *Memory) evolutionSuggestions() []string {
	if len(m.transitions) < 2 {
		return nil
	}
	start := len(m.transitions) - 3
	if start < 0 {
		start = 0
	}
	counts := map[string]int{}
	for _, tr := range m.transitions[start:] {
		for _, t := range tr.To {
			counts[t]++
		}
	}
	best, bestCount := "", 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best, bestCount = t, c
		}
	}
	if bestCount > 1 {
		return []string{fmt.Sprintf("Какие еще аспекты %s важны?", best)}
	}
	return nil
}

var patternSuggestionSets = map[string][]string{
	"definition": {"Что означает этот термин?", "Дайте определение"},
	"procedure":  {"Опишите процедуру", "Какие этапы включает?"},
	"comparison": {"В чем разница?", "Сравните варианты"},
	"examples":   {"Приведите конкретные примеры", "Какие есть случаи?"},
	"causes":     {"Какие причины этого?", "Что влияет на это?"},
}

// patternSuggestions finds the dominant question pattern in the recent
// history and suggests more of the same kind. Held under m.mu.
func (m *Memory) patternSuggestions() []string {
	if len(m.history) < 2 {
		return nil
	}
	start := len(m.history) - 5
	if start < 0 {
		start = 0
	}
	counts := map[string]int{}
	for _, it := range m.history[start:] {
		lower := strings.ToLower(it.Query)
		switch {
		case containsAny(lower, "что такое", "определение", "означает"):
			counts["definition"]++
		case containsAny(lower, "как", "процедура", "этапы"):
			counts["procedure"]++
		case containsAny(lower, "разница", "отличие", "сравн"):
			counts["comparison"]++
		case containsAny(lower, "пример", "случай"):
			counts["examples"]++
		case containsAny(lower, "почему", "причина"):
			counts["causes"]++
		}
	}
	best, bestCount := "", 0
	for p, c := range counts {
		if c > bestCount || (c == bestCount && p < best) {
			best, bestCount = p, c
		}
	}
	if bestCount > 0 {
		return patternSuggestionSets[best]
	}
	return nil
}

// rankSuggestions deduplicates and puts suggestions mentioning an active
// topic ahead of the rest, preserving order within each group.
func rankSuggestions(candidates []string, topics map[string]bool) []string {
	seen := map[string]bool{}
	var unique []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if seen[key] || len([]rune(c)) <= 5 {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}

	var matched, rest []string
	for _, s := range unique {
		// Trailing punctuation would hide a topic word from the match.
		words := map[string]bool{}
		for _, w := range strings.Fields(strings.ToLower(s)) {
			if w = strings.Trim(w, `?!.,:;()"«»`); w != "" {
				words[w] = true
			}
		}
		hit := false
		for t := range topics {
			if words[t] {
				hit = true
				break
			}
		}
		if hit {
			matched = append(matched, s)
		} else {
			rest = append(rest, s)
		}
	}
	return append(matched, rest...)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
