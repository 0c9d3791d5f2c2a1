package memory

import (
	"strings"
	"testing"
)

func TestSuggestions_CapAndDedup(t *testing.T) {
	m := New(10, 3, nil)
	m.Record("Что такое гарантийное обслуживание оборудования?",
		"Гарантийное обслуживание покрывает ремонт оборудования компанией ООО.", nil)

	got := m.Suggestions("Что такое гарантийное обслуживание оборудования?",
		"Гарантийное обслуживание покрывает ремонт оборудования компанией ООО.")

	if len(got) == 0 {
		t.Fatal("expected suggestions for a topic-rich turn")
	}
	if len(got) > 6 {
		t.Errorf("suggestions capped at 6, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, s := range got {
		key := strings.ToLower(s)
		if seen[key] {
			t.Errorf("duplicate suggestion: %q", s)
		}
		seen[key] = true
		if len([]rune(s)) <= 5 {
			t.Errorf("degenerate suggestion: %q", s)
		}
	}
}

func TestFlowSuggestions(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Что такое рекламация?", "примеры"},
		{"Как оформить возврат?", "альтернативные"},
		{"Сколько филиалов у компании?", "показатели"},
	}
	for _, tt := range tests {
		got := strings.Join(flowSuggestions(tt.query), "\n")
		if !strings.Contains(got, tt.want) {
			t.Errorf("flowSuggestions(%q) = %q, want mention of %q", tt.query, got, tt.want)
		}
	}
	if got := flowSuggestions("назовите ответственного"); got != nil {
		t.Errorf("neutral phrasing should yield nothing, got %v", got)
	}
}

func TestPatternSuggestions(t *testing.T) {
	m := New(10, 3, nil)
	m.Record("Что такое рекламация?", "Рекламация это претензия по качеству.", nil)
	m.Record("Что означает неустойка?", "Неустойка это штрафная выплата.", nil)
	m.Record("Дайте определение аванса", "Аванс это предварительная оплата.", nil)

	got := strings.Join(m.patternSuggestions(), "\n")
	if !strings.Contains(got, "термин") && !strings.Contains(got, "определение") {
		t.Errorf("definition-heavy history should yield definition follow-ups, got %q", got)
	}
}

func TestRankSuggestions_TopicMatchesFirst(t *testing.T) {
	topics := map[string]bool{"оборудования": true}
	got := rankSuggestions([]string{
		"Какие есть примеры этого?",
		"Какие проблемы связаны с оборудования?",
		"какие есть примеры этого?",
	}, topics)

	if len(got) != 2 {
		t.Fatalf("case-insensitive dedup failed, got %v", got)
	}
	if !strings.Contains(got[0], "оборудования") {
		t.Errorf("topic-matching suggestion must rank first, got %v", got)
	}
}
