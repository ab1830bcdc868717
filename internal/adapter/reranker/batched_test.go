package reranker

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// scriptedReranker scores each text by its length and fails any batch
// whose first text matches failOn.
type scriptedReranker struct {
	failOn string
	calls  int
}

func (s *scriptedReranker) Rerank(_ context.Context, _ string, texts []string) ([]port.RerankedResult, error) {
	s.calls++
	if len(texts) > 0 && texts[0] == s.failOn {
		return nil, errors.New("scoring backend unavailable")
	}
	results := make([]port.RerankedResult, len(texts))
	for i, t := range texts {
		results[i] = port.RerankedResult{Index: i, Score: float64(len(t))}
	}
	return results, nil
}

func (s *scriptedReranker) ModelName() string { return "scripted" }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestBatched_SplitsAndMergesGlobalIndices(t *testing.T) {
	inner := &scriptedReranker{}
	b := NewBatched(inner, 2, quietLogger())

	texts := []string{"a", "bbb", "cc", "dddd", "e"}
	results, err := b.Rerank(context.Background(), "q", texts)
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 batches, got %d calls", inner.calls)
	}
	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}

	// Longest text wins regardless of which batch scored it.
	if results[0].Index != 3 {
		t.Errorf("expected index 3 (dddd) first, got %d", results[0].Index)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted by score")
		}
	}
}

func TestBatched_DropsFailedBatch(t *testing.T) {
	inner := &scriptedReranker{failOn: "cc"}
	b := NewBatched(inner, 2, quietLogger())

	// Second batch ("cc", "dddd") fails and is dropped.
	texts := []string{"a", "bbb", "cc", "dddd", "e"}
	results, err := b.Rerank(context.Background(), "q", texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 surviving results, got %d", len(results))
	}
	for _, r := range results {
		if r.Index == 2 || r.Index == 3 {
			t.Errorf("dropped batch index %d present in results", r.Index)
		}
	}
}

func TestBatched_AllBatchesFail(t *testing.T) {
	inner := &scriptedReranker{failOn: "x"}
	b := NewBatched(inner, 2, quietLogger())

	_, err := b.Rerank(context.Background(), "q", []string{"x", "y", "x", "z"})
	if err == nil {
		t.Fatal("expected error when every batch fails")
	}
	var rerr *domain.RerankError
	if !errors.As(err, &rerr) {
		t.Errorf("expected *domain.RerankError, got %T", err)
	}
}

func TestBatched_EmptyInput(t *testing.T) {
	inner := &scriptedReranker{}
	b := NewBatched(inner, 2, quietLogger())

	results, err := b.Rerank(context.Background(), "q", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if inner.calls != 0 {
		t.Errorf("inner reranker should not be called, got %d calls", inner.calls)
	}
}

func TestLexical_RanksByTermOverlap(t *testing.T) {
	r := NewLexical()

	texts := []string{
		"shipping rates and delivery windows",
		"the refund policy covers all purchases",
		"refund requests and refund timelines",
	}
	results, err := r.Rerank(context.Background(), "refund policy", texts)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Index != 1 {
		t.Errorf("expected full-overlap text first, got index %d", results[0].Index)
	}
	if results[len(results)-1].Index != 0 {
		t.Errorf("expected zero-overlap text last, got index %d", results[len(results)-1].Index)
	}
}

func TestLexical_EmptyQueryPreservesOrder(t *testing.T) {
	r := NewLexical()

	results, err := r.Rerank(context.Background(), "", []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	for i, res := range results {
		if res.Index != i {
			t.Errorf("position %d: index %d, order not preserved", i, res.Index)
		}
	}
}
