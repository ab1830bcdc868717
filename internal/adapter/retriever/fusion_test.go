package retriever

import (
	"testing"

	"ragchat/internal/domain"
)

func cand(id string, score float64, method domain.Method) domain.Candidate {
	return domain.Candidate{
		Chunk:  domain.Chunk{ID: id, DocID: "doc"},
		Score:  score,
		Method: method,
	}
}

func TestFuser_ConsensusOutranksSingleMethod(t *testing.T) {
	f := NewFuser(60, 0.5, 0.5)

	dense := []domain.Candidate{
		cand("both", 0.9, domain.MethodDense),
		cand("dense-only", 0.8, domain.MethodDense),
	}
	sparse := []domain.Candidate{
		cand("both", 5.0, domain.MethodSparse),
		cand("sparse-only", 4.0, domain.MethodSparse),
	}

	passages := f.Fuse([][]domain.Candidate{dense, sparse}, 10)
	if len(passages) != 3 {
		t.Fatalf("expected 3 deduplicated passages, got %d", len(passages))
	}
	if passages[0].Chunk.ID != "both" {
		t.Errorf("consensus chunk should rank first, got %s", passages[0].Chunk.ID)
	}
	if len(passages[0].Methods) != 2 {
		t.Errorf("consensus chunk should carry both methods, got %v", passages[0].Methods)
	}

	// Both contributions at rank 0: 0.5/61 + 0.5/61.
	want := 1.0 / 61.0
	if diff := passages[0].Score - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("fused score = %v, want %v", passages[0].Score, want)
	}
}

func TestFuser_WeightsShiftRanking(t *testing.T) {
	f := NewFuser(60, 0.9, 0.1)

	dense := []domain.Candidate{cand("d", 0.9, domain.MethodDense)}
	sparse := []domain.Candidate{cand("s", 9.0, domain.MethodSparse)}

	passages := f.Fuse([][]domain.Candidate{dense, sparse}, 10)
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(passages))
	}
	if passages[0].Chunk.ID != "d" {
		t.Errorf("dense-weighted fusion should rank the dense result first, got %s", passages[0].Chunk.ID)
	}
}

func TestFuser_SingleListDegraded(t *testing.T) {
	f := NewFuser(60, 0.5, 0.5)

	sparse := []domain.Candidate{
		cand("a", 5.0, domain.MethodSparse),
		cand("b", 4.0, domain.MethodSparse),
	}

	passages := f.Fuse([][]domain.Candidate{nil, sparse}, 10)
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(passages))
	}
	if passages[0].Chunk.ID != "a" || passages[1].Chunk.ID != "b" {
		t.Errorf("single-list order not preserved: %v, %v", passages[0].Chunk.ID, passages[1].Chunk.ID)
	}
}

func TestFuser_TieBreaksDeterministic(t *testing.T) {
	f := NewFuser(60, 0.5, 0.5)

	// Same rank in the same method: identical fused scores and raw
	// scores, so the chunk ID decides.
	listA := []domain.Candidate{cand("zeta", 1.0, domain.MethodSparse)}
	listB := []domain.Candidate{cand("alpha", 1.0, domain.MethodSparse)}

	passages := f.Fuse([][]domain.Candidate{listA, listB}, 10)
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(passages))
	}
	if passages[0].Chunk.ID != "alpha" {
		t.Errorf("tie should break by chunk ID, got %s first", passages[0].Chunk.ID)
	}
}

func TestFuser_LimitTruncates(t *testing.T) {
	f := NewFuser(60, 0.5, 0.5)

	var sparse []domain.Candidate
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		sparse = append(sparse, cand(id, 1.0, domain.MethodSparse))
	}

	passages := f.Fuse([][]domain.Candidate{sparse}, 3)
	if len(passages) != 3 {
		t.Errorf("expected 3 passages, got %d", len(passages))
	}
}

func TestFuser_EmptyInput(t *testing.T) {
	f := NewFuser(60, 0.5, 0.5)

	passages := f.Fuse(nil, 5)
	if len(passages) != 0 {
		t.Errorf("expected no passages, got %d", len(passages))
	}
	passages = f.Fuse([][]domain.Candidate{nil, nil}, 5)
	if len(passages) != 0 {
		t.Errorf("expected no passages, got %d", len(passages))
	}
}
