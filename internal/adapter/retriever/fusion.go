package retriever

import (
	"sort"

	"ragchat/internal/domain"
)

// Fuser merges per-method candidate lists with weighted reciprocal-rank
// fusion. A candidate appearing in several lists accumulates every list's
// contribution, so consensus results rise.
type Fuser struct {
	rrfK         int
	denseWeight  float64
	sparseWeight float64
}

func NewFuser(rrfK int, denseWeight, sparseWeight float64) *Fuser {
	if rrfK <= 0 {
		rrfK = 60 // Standard default
	}
	if denseWeight <= 0 && sparseWeight <= 0 {
		denseWeight, sparseWeight = 0.5, 0.5
	}
	return &Fuser{
		rrfK:         rrfK,
		denseWeight:  denseWeight,
		sparseWeight: sparseWeight,
	}
}

type fusedEntry struct {
	chunk       domain.Chunk
	fused       float64
	denseScore  float64
	sparseScore float64
	methods     []domain.Method
}

// Fuse merges the candidate lists and returns at most limit passages,
// deduplicated by chunk ID. Each list must already be ordered by its own
// score. Ties on the fused score break by raw dense similarity, then raw
// sparse score, then chunk ID, keeping the ordering reproducible.
func (f *Fuser) Fuse(lists [][]domain.Candidate, limit int) []domain.Passage {
	entries := make(map[string]*fusedEntry)

	for _, list := range lists {
		for rank, cand := range list {
			e, ok := entries[cand.Chunk.ID]
			if !ok {
				e = &fusedEntry{chunk: cand.Chunk}
				entries[cand.Chunk.ID] = e
			}

			e.fused += f.weightFor(cand.Method) / float64(f.rrfK+rank+1)
			e.methods = append(e.methods, cand.Method)
			switch cand.Method {
			case domain.MethodDense:
				e.denseScore = cand.Score
			case domain.MethodSparse:
				e.sparseScore = cand.Score
			}
		}
	}

	fused := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		fused = append(fused, e)
	}

	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.fused != b.fused {
			return a.fused > b.fused
		}
		if a.denseScore != b.denseScore {
			return a.denseScore > b.denseScore
		}
		if a.sparseScore != b.sparseScore {
			return a.sparseScore > b.sparseScore
		}
		return a.chunk.ID < b.chunk.ID
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	passages := make([]domain.Passage, len(fused))
	for i, e := range fused {
		passages[i] = domain.Passage{
			Chunk:   e.chunk,
			Score:   e.fused,
			Methods: e.methods,
		}
	}

	return passages
}

func (f *Fuser) weightFor(method domain.Method) float64 {
	switch method {
	case domain.MethodDense:
		return f.denseWeight
	case domain.MethodSparse:
		return f.sparseWeight
	default:
		return 0
	}
}
