package memory

import (
	"testing"
)

func TestExtractTopicsWeighted(t *testing.T) {
	topics := extractTopicsWeighted("Процедура гарантийного обслуживания оборудования и сроки процедуры")

	if _, ok := topics["что"]; ok {
		t.Error("stop words must not become topics")
	}
	if _, ok := topics["и"]; ok {
		t.Error("short words must not become topics")
	}
	w, ok := topics["процедура"]
	if !ok {
		t.Fatalf("expected topic missing: %v", topics)
	}
	// Frequency 1 of max 1, long-word boost, domain bonus: clamped to 1.
	if w != 1 {
		t.Errorf("weight(процедура) = %.2f, want 1.0", w)
	}
	for topic, weight := range topics {
		if weight < 0 || weight > 1 {
			t.Errorf("weight(%s) = %.2f outside [0,1]", topic, weight)
		}
	}
}

func TestExtractTopicsWeighted_NounPhrases(t *testing.T) {
	topics := extractTopicsWeighted("Тема: гарантийное обслуживание оборудования.")
	if _, ok := topics["гарантийное обслуживание оборудования"]; !ok {
		t.Errorf("expected a noun phrase topic, got %v", topics)
	}
}

func TestTopicSimilarity(t *testing.T) {
	a := map[string]bool{"гарантийное": true, "обслуживание": true}
	b := map[string]bool{"гарантийного": true, "обслуживания": true}
	c := map[string]bool{"рецепт": true, "пирога": true}

	if got := topicSimilarity(a, a); got != 1 {
		t.Errorf("similarity with self = %.2f, want 1", got)
	}
	if got := topicSimilarity(a, nil); got != 0 {
		t.Errorf("similarity with empty = %.2f, want 0", got)
	}

	// Morphological variants share no exact terms but are near-identical,
	// so the edit-similarity bonus must lift them above the disjoint pair.
	variant := topicSimilarity(a, b)
	disjoint := topicSimilarity(a, c)
	if variant <= disjoint {
		t.Errorf("variant similarity %.3f should exceed disjoint %.3f", variant, disjoint)
	}
	if variant > 1 {
		t.Errorf("similarity %.3f exceeds 1", variant)
	}
}

func TestEditRatio(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"обслуживание", "обслуживание", 1, 1},
		{"обслуживание", "обслуживания", 0.9, 1},
		{"рецепт", "норматив", 0, 0.4},
		{"", "", 1, 1},
		{"слово", "", 0, 0},
	}
	for _, tt := range tests {
		got := editRatio(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("editRatio(%q, %q) = %.3f, want in [%.1f, %.1f]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func TestClassifyTransition(t *testing.T) {
	old := map[string]bool{"а1": true, "б2": true, "в3": true, "г4": true}
	tests := []struct {
		name string
		next map[string]bool
		want string
	}{
		{"continuation", map[string]bool{"а1": true, "б2": true, "в3": true, "г4": true}, "continuation"},
		{"evolution", map[string]bool{"а1": true, "б2": true, "д5": true}, "evolution"},
		{"shift", map[string]bool{"д5": true, "е6": true}, "shift"},
	}
	for _, tt := range tests {
		if got := classifyTransition(old, tt.next); got != tt.want {
			t.Errorf("%s: classifyTransition = %q, want %q", tt.name, got, tt.want)
		}
	}
	if got := classifyTransition(nil, old); got != "initial" {
		t.Errorf("empty old set: got %q, want initial", got)
	}
}

func TestSemanticHash(t *testing.T) {
	h1 := semanticHash("Какие сроки гарантийного обслуживания?", "Двенадцать месяцев.")
	h2 := semanticHash("Какие сроки гарантийного обслуживания?", "Двенадцать месяцев.")
	h3 := semanticHash("Рецепт яблочного пирога", "Испечь в духовке.")

	if h1 != h2 {
		t.Error("hash must be deterministic")
	}
	if h1 == h3 {
		t.Error("different topics must hash differently")
	}
	if len(h1) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(h1))
	}
}

func TestExtractEntities(t *testing.T) {
	text := `Согласно статья 15 договора №123-45, компания ООО выплачивает 5.5% от суммы 1000 рублей. Подробности в «Приложении Б».`

	entities := extractEntities(text)
	if len(entities) == 0 {
		t.Fatal("expected entities")
	}

	has := func(want string) bool {
		for _, e := range entities {
			if e == want {
				return true
			}
		}
		return false
	}
	if !has("статья 15") {
		t.Errorf("missing document reference, got %v", entities)
	}
	if !has("ООО") {
		t.Errorf("missing acronym, got %v", entities)
	}
	if !has("Приложении Б") {
		t.Errorf("missing quoted text, got %v", entities)
	}
	for _, e := range entities {
		if isAllDigits(e) {
			t.Errorf("bare number leaked into entities: %q", e)
		}
	}
}
