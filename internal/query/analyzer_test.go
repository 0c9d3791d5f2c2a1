package query

import (
	"reflect"
	"strings"
	"testing"

	"docrouter/internal/model"
)

func TestAnalyze_CleanAndQuestionMark(t *testing.T) {
	a := NewAnalyzer(nil)

	res := a.Analyze("что  такое   регламент", "")
	if res.Cleaned != "что такое регламент?" {
		t.Errorf("cleaned = %q", res.Cleaned)
	}

	// Already terminated queries stay untouched.
	res = a.Analyze("что такое регламент?", "")
	if strings.HasSuffix(res.Cleaned, "??") {
		t.Errorf("double question mark: %q", res.Cleaned)
	}

	// No interrogative word, no question mark.
	res = a.Analyze("налоговый кодекс", "")
	if strings.HasSuffix(res.Cleaned, "?") {
		t.Errorf("unexpected question mark: %q", res.Cleaned)
	}
}

func TestAnalyze_SpellCorrection(t *testing.T) {
	a := NewAnalyzer(nil)

	// The interrogative only appears after correction, the question mark
	// must still be appended.
	res := a.Analyze("што такое докумнт", "")
	if res.Corrected != "что такое документ?" {
		t.Errorf("corrected = %q", res.Corrected)
	}

	// Unknown tokens pass through unchanged.
	res = a.Analyze("что такое квазидокумент", "")
	if !strings.Contains(res.Corrected, "квазидокумент") {
		t.Errorf("unknown token altered: %q", res.Corrected)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		query string
		want  model.Language
	}{
		{"что такое налог", model.LangRussian},
		{"what is the tax rate", model.LangEnglish},
		{"что такое VAT", model.LangRussian},
		{"12345 !!!", model.LangRussian}, // no alphabet at all -> default
	}
	for _, tt := range tests {
		if got := detectLanguage(tt.query); got != tt.want {
			t.Errorf("detectLanguage(%q) = %s, want %s", tt.query, got, tt.want)
		}
	}
}

func TestClassifyIntent_OrderMatters(t *testing.T) {
	tests := []struct {
		query string
		want  model.Intent
	}{
		{"что такое процедура банкротства", model.IntentDefinition},
		{"разница между актом и законом", model.IntentComparison},
		{"как сделать запрос", model.IntentProcedure},
		{"сколько дней на ответ", model.IntentQuantitative},
		{"когда вступает в силу", model.IntentTemporal},
		{"где подать заявление", model.IntentLocation},
		{"почему отказали", model.IntentCausal},
		{"покажи последний отчет", model.IntentGeneral},
		{"what is the difference between them", model.IntentDefinition}, // definition wins by rule order
		{"how to file a claim", model.IntentProcedure},
	}
	for _, tt := range tests {
		if got := classifyIntent(strings.ToLower(tt.query)); got != tt.want {
			t.Errorf("classifyIntent(%q) = %s, want %s", tt.query, got, tt.want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	kws := extractKeywords("Как оформить документ для организации?")
	want := []string{"оформить", "документ", "организации"}
	if !reflect.DeepEqual(kws, want) {
		t.Errorf("keywords = %v, want %v", kws, want)
	}
}

func TestExpand_CapAndOriginalFirst(t *testing.T) {
	a := NewAnalyzer(nil)

	res := a.Analyze("что такое документ и информация", "")
	if len(res.Expansions) > 5 {
		t.Fatalf("expansions over cap: %d", len(res.Expansions))
	}
	if res.Expansions[0] != res.Corrected {
		t.Errorf("first expansion %q is not the corrected query %q", res.Expansions[0], res.Corrected)
	}

	seen := map[string]bool{}
	for _, e := range res.Expansions {
		if seen[e] {
			t.Errorf("duplicate expansion %q", e)
		}
		seen[e] = true
	}
}

func TestIntegrateContext(t *testing.T) {
	a := NewAnalyzer(nil)

	// Overlapping keyword biases the final form.
	res := a.Analyze("какие сроки у процедуры", "Предыдущий вопрос: что такое процедуры банкротства")
	if !strings.HasPrefix(res.FinalForm, "В контексте ") {
		t.Errorf("final form missing context prefix: %q", res.FinalForm)
	}
	if !res.HasContext {
		t.Error("HasContext = false")
	}

	// No overlap leaves the query unchanged.
	res = a.Analyze("какие сроки у процедуры", "совсем другая тема про погоду")
	if res.FinalForm != res.Corrected {
		t.Errorf("final form changed without overlap: %q", res.FinalForm)
	}

	// Short context is ignored.
	res = a.Analyze("какие сроки у процедуры", "сроки")
	if res.HasContext {
		t.Error("short context should be ignored")
	}

	// A keyword repeated in the query shows up once in the prefix.
	res = a.Analyze("сроки гарантии и сроки ремонта", "Предыдущий вопрос: какие сроки установлены")
	if !strings.HasPrefix(res.FinalForm, "В контексте сроки: ") {
		t.Errorf("overlap terms not deduplicated: %q", res.FinalForm)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := NewAnalyzer(nil)

	first := a.Analyze("Как оформить докумнт в организации?", "контекст про оформление документов")
	second := a.Analyze("Как оформить докумнт в организации?", "контекст про оформление документов")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("analysis not deterministic:\n%+v\n%+v", first, second)
	}
}
