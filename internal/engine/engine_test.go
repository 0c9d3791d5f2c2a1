package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docrouter/internal/memory"
	"docrouter/internal/model"
	"docrouter/internal/query"
	"docrouter/internal/router"
)

type fakeRetriever struct {
	fragments []model.Fragment
	lastQuery string
}

func (f *fakeRetriever) Search(ctx context.Context, q string, k int, dist float64, files []string) []model.Fragment {
	f.lastQuery = q
	return f.fragments
}

type fakeAnswerer struct {
	answer string
	err    error
	calls  int
}

func (f *fakeAnswerer) Answer(ctx context.Context, question, docContext, memoryContext string, temperature float32, maxTokens int) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeStore struct {
	appended []model.Interaction
	err      error
}

func (f *fakeStore) Append(ctx context.Context, sessionID string, it model.Interaction) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, it)
	return nil
}

func newEngine(r *fakeRetriever, a *fakeAnswerer, s Store) *Engine {
	return New(
		query.NewAnalyzer(nil),
		r,
		router.New(router.Config{}, nil, nil, nil),
		a,
		memory.New(10, 3, nil),
		s,
		Config{},
		nil,
	)
}

func goodFragments() []model.Fragment {
	return []model.Fragment{
		{Content: strings.Repeat("гарантийный срок составляет двенадцать месяцев ", 3),
			SourceFile: "warranty.pdf", Distance: 0.1},
		{Content: "дополнительные условия обслуживания",
			SourceFile: "annex.pdf", Distance: 0.3},
	}
}

func TestAsk_AnswerableFlow(t *testing.T) {
	r := &fakeRetriever{fragments: goodFragments()}
	a := &fakeAnswerer{answer: "Гарантийный срок составляет двенадцать месяцев."}
	s := &fakeStore{}
	e := newEngine(r, a, s)

	res, err := e.Ask(context.Background(), "s1", "Какой гарантийный срок?", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !res.Decision.CanAnswer {
		t.Fatal("expected answerable decision")
	}
	if res.Answer != a.answer {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.Sources) != 2 || res.Sources[0].File != "warranty.pdf" {
		t.Errorf("sources = %v", res.Sources)
	}
	if len(s.appended) != 1 {
		t.Fatalf("store appends = %d, want 1", len(s.appended))
	}
	if got := e.Memory().History(); len(got) != 1 {
		t.Errorf("memory turns = %d, want 1", len(got))
	}
	if len(res.Suggestions) == 0 {
		t.Error("expected follow-up suggestions after an answer")
	}
}

func TestAsk_DeclinedRecordsNothing(t *testing.T) {
	r := &fakeRetriever{} // no fragments
	a := &fakeAnswerer{answer: "unused"}
	s := &fakeStore{}
	e := newEngine(r, a, s)

	res, err := e.Ask(context.Background(), "s1", "вопрос не по теме", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if res.Decision.CanAnswer || res.Answer != "" {
		t.Error("declined query must not carry an answer")
	}
	if a.calls != 0 {
		t.Error("generation must not run for a declined query")
	}
	if len(s.appended) != 0 || len(e.Memory().History()) != 0 {
		t.Error("declined query must leave no trace")
	}
}

func TestAsk_GenerationFailureRecordsNothing(t *testing.T) {
	r := &fakeRetriever{fragments: goodFragments()}
	a := &fakeAnswerer{err: errors.New("model unavailable")}
	s := &fakeStore{}
	e := newEngine(r, a, s)

	_, err := e.Ask(context.Background(), "s1", "Какой гарантийный срок?", nil)
	if err == nil {
		t.Fatal("expected generation error to surface")
	}
	if len(s.appended) != 0 || len(e.Memory().History()) != 0 {
		t.Error("failed turn must leave no trace")
	}
}

func TestAsk_StoreFailureDoesNotFailTurn(t *testing.T) {
	r := &fakeRetriever{fragments: goodFragments()}
	a := &fakeAnswerer{answer: "ответ"}
	s := &fakeStore{err: errors.New("disk full")}
	e := newEngine(r, a, s)

	res, err := e.Ask(context.Background(), "s1", "Какой гарантийный срок?", nil)
	if err != nil {
		t.Fatalf("store failure must not fail the turn: %v", err)
	}
	if res.Answer == "" {
		t.Error("answer should survive a persistence failure")
	}
	if len(e.Memory().History()) != 1 {
		t.Error("memory should still record the turn")
	}
}

func TestAsk_RetrievesWithNormalizedQuery(t *testing.T) {
	r := &fakeRetriever{fragments: goodFragments()}
	a := &fakeAnswerer{answer: "ответ"}
	e := newEngine(r, a, nil)

	_, err := e.Ask(context.Background(), "s1", "какой   гарантийный срок", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if strings.Contains(r.lastQuery, "  ") {
		t.Errorf("retrieval should see the normalized form, got %q", r.lastQuery)
	}
	if !strings.HasSuffix(r.lastQuery, "?") {
		t.Errorf("normalized query should end with a question mark, got %q", r.lastQuery)
	}
}
