package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docrouter/internal/model"
)

type fakeDecider struct {
	verdict bool
	called  bool
}

func (f *fakeDecider) Decide(ctx context.Context, query, docContext string) bool {
	f.called = true
	return f.verdict
}

type fakeSummarizer struct {
	summary string
	err     error
	called  bool
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	f.called = true
	return f.summary, f.err
}

func analysisEN(query string) model.QueryAnalysis {
	return model.QueryAnalysis{
		Original:  query,
		FinalForm: query,
		Language:  model.LangEnglish,
		Intent:    model.IntentGeneral,
	}
}

func TestRoute_HighConfidenceAnswers(t *testing.T) {
	r := New(Config{}, nil, nil, nil)
	frags := []model.Fragment{
		{Content: strings.Repeat("relevant text ", 10), Distance: 0.05},
		{Content: "secondary", Distance: 0.5},
	}

	dec := r.Route(context.Background(), analysisEN("what is the warranty period?"), frags)
	if !dec.CanAnswer {
		t.Fatal("expected high-confidence answer")
	}
	if dec.Confidence < 0.94 || dec.Confidence > 0.96 {
		t.Errorf("confidence = %.3f, want 0.95", dec.Confidence)
	}
	if dec.SourceCount != 2 {
		t.Errorf("source count = %d, want 2", dec.SourceCount)
	}
}

func TestRoute_NoFragments(t *testing.T) {
	r := New(Config{}, nil, nil, nil)

	dec := r.Route(context.Background(), analysisEN("anything"), nil)
	if dec.CanAnswer {
		t.Error("expected cannot-answer with no fragments")
	}
	if dec.Confidence != 0 {
		t.Errorf("confidence = %.3f, want 0", dec.Confidence)
	}
	if dec.Reasoning != "No relevant documents found" {
		t.Errorf("unexpected reasoning: %q", dec.Reasoning)
	}
}

func TestRoute_LowConfidenceIsTerminal(t *testing.T) {
	r := New(Config{}, nil, nil, nil)
	// Plenty of context, but the best distance is far past the threshold.
	// Volume of text must not rescue a bad match.
	frags := []model.Fragment{
		{Content: strings.Repeat("loosely related prose ", 50), Distance: 0.9},
	}

	dec := r.Route(context.Background(), analysisEN("unrelated question"), frags)
	if dec.CanAnswer {
		t.Error("low confidence must not answer regardless of context size")
	}
	if !strings.Contains(dec.Reasoning, "below") {
		t.Errorf("reasoning should name the threshold: %q", dec.Reasoning)
	}
}

func TestRoute_ConfidenceUsesBestFragmentNotAverage(t *testing.T) {
	r := New(Config{}, nil, nil, nil)
	// One excellent match among poor ones. An average would sink below the
	// high cutoff; the minimum distance keeps it answerable.
	frags := []model.Fragment{
		{Content: "poor", Distance: 0.95},
		{Content: "poor", Distance: 0.95},
		{Content: "excellent match with enough text to matter", Distance: 0.1},
		{Content: "poor", Distance: 0.95},
	}

	dec := r.Route(context.Background(), analysisEN("q"), frags)
	if !dec.CanAnswer {
		t.Fatal("best-fragment confidence should answer")
	}
	if dec.Confidence < 0.89 {
		t.Errorf("confidence = %.3f, want 0.9 from the best fragment", dec.Confidence)
	}
}

func TestRoute_MediumTierDefersToDecider(t *testing.T) {
	longEnough := strings.Repeat("context ", 20)

	for _, verdict := range []bool{true, false} {
		d := &fakeDecider{verdict: verdict}
		r := New(Config{}, d, nil, nil)
		frags := []model.Fragment{{Content: longEnough, Distance: 0.7}}

		dec := r.Route(context.Background(), analysisEN("q"), frags)
		if !d.called {
			t.Fatal("decider was not consulted in the medium tier")
		}
		if dec.CanAnswer != verdict {
			t.Errorf("CanAnswer = %v, want decider verdict %v", dec.CanAnswer, verdict)
		}
	}
}

func TestRoute_MediumTierWithoutDeciderAnswers(t *testing.T) {
	r := New(Config{}, nil, nil, nil)
	frags := []model.Fragment{{Content: strings.Repeat("context ", 20), Distance: 0.7}}

	if dec := r.Route(context.Background(), analysisEN("q"), frags); !dec.CanAnswer {
		t.Error("medium tier without a decider should answer")
	}
}

func TestRoute_MediumTierShortContextCannotAnswer(t *testing.T) {
	r := New(Config{}, nil, nil, nil)
	frags := []model.Fragment{{Content: "short", Distance: 0.7}}

	if dec := r.Route(context.Background(), analysisEN("q"), frags); dec.CanAnswer {
		t.Error("medium confidence with tiny context must not answer")
	}
}

func TestRoute_ContextCapSummarizes(t *testing.T) {
	s := &fakeSummarizer{summary: "condensed"}
	r := New(Config{ContextCapChars: 100}, nil, s, nil)
	frags := []model.Fragment{{Content: strings.Repeat("x", 200), Distance: 0.1}}

	dec := r.Route(context.Background(), analysisEN("q"), frags)
	if !s.called {
		t.Fatal("summarizer was not invoked for oversized context")
	}
	if dec.Context != "condensed" {
		t.Errorf("context = %q, want summary", dec.Context)
	}
}

func TestRoute_SummarizerFailureTruncates(t *testing.T) {
	s := &fakeSummarizer{err: errors.New("service down")}
	r := New(Config{ContextCapChars: 100}, nil, s, nil)
	frags := []model.Fragment{{Content: strings.Repeat("ы", 200), Distance: 0.1}}

	dec := r.Route(context.Background(), analysisEN("q"), frags)
	want := strings.Repeat("ы", 100) + "..."
	if dec.Context != want {
		t.Errorf("expected rune-safe truncation, got %d chars", len([]rune(dec.Context)))
	}
}

func TestSetThreshold(t *testing.T) {
	r := New(Config{}, nil, nil, nil)

	if err := r.SetThreshold(0.3); err != nil {
		t.Fatalf("valid threshold rejected: %v", err)
	}
	if got := r.Threshold(); got != 0.3 {
		t.Errorf("threshold = %.2f, want 0.3", got)
	}

	if err := r.SetThreshold(1.5); err == nil {
		t.Fatal("threshold 1.5 should be rejected")
	}
	if got := r.Threshold(); got != 0.3 {
		t.Errorf("rejected update must keep prior threshold, got %.2f", got)
	}
}

func TestSetThreshold_MonotonicEffect(t *testing.T) {
	frags := []model.Fragment{{Content: strings.Repeat("context ", 20), Distance: 0.75}}
	r := New(Config{}, nil, nil, nil)

	// Confidence 0.25 clears the default 0.15 threshold.
	if dec := r.Route(context.Background(), analysisEN("q"), frags); !dec.CanAnswer {
		t.Fatal("expected answer at default threshold")
	}

	// Raising the threshold above the confidence flips the decision.
	if err := r.SetThreshold(0.3); err != nil {
		t.Fatal(err)
	}
	if dec := r.Route(context.Background(), analysisEN("q"), frags); dec.CanAnswer {
		t.Error("raised threshold should block the same query")
	}
}

func TestRoute_RussianReasoning(t *testing.T) {
	r := New(Config{}, nil, nil, nil)
	analysis := model.QueryAnalysis{
		FinalForm: "что такое гарантия?",
		Language:  model.LangRussian,
		Intent:    model.IntentDefinition,
	}
	frags := []model.Fragment{{Content: strings.Repeat("текст ", 20), Distance: 0.1}}

	dec := r.Route(context.Background(), analysis, frags)
	if !strings.Contains(dec.Reasoning, "определение") {
		t.Errorf("reasoning should carry the localized intent: %q", dec.Reasoning)
	}
	if !strings.Contains(dec.Reasoning, "0.90") {
		t.Errorf("reasoning should carry the confidence: %q", dec.Reasoning)
	}
	if !strings.Contains(dec.Reasoning, "язык: русский") {
		t.Errorf("reasoning should carry the detected language: %q", dec.Reasoning)
	}
}

func TestRoute_ReasoningNamesLanguage(t *testing.T) {
	r := New(Config{}, nil, nil, nil)
	frags := []model.Fragment{{Content: strings.Repeat("relevant text ", 10), Distance: 0.1}}

	dec := r.Route(context.Background(), analysisEN("what is the warranty period?"), frags)
	if !strings.Contains(dec.Reasoning, "language: English") {
		t.Errorf("reasoning should carry the detected language: %q", dec.Reasoning)
	}
}

func TestExplain(t *testing.T) {
	dec := model.RoutingDecision{
		CanAnswer:   true,
		Confidence:  0.9,
		SourceCount: 3,
		Reasoning:   "Found 3 relevant fragments, confidence 0.90, query type: general",
		Language:    model.LangEnglish,
	}
	out := Explain(dec)
	if !strings.Contains(out, "answer from documents") || !strings.Contains(out, "Fragments: 3") {
		t.Errorf("unexpected explain output:\n%s", out)
	}
	if !strings.Contains(out, "Language: English") {
		t.Errorf("explain output should name the language:\n%s", out)
	}
}
