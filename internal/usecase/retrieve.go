package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ragchat/internal/domain"
)

// Retrieve embeds the query, runs dense and sparse searches concurrently,
// fuses, reranks, and returns at most k unique passages. A k of zero or an
// empty query is a defined no-op. One failed retrieval method degrades the
// result instead of failing it; the call errors only when both methods
// fail.
func (s *Service) Retrieve(ctx context.Context, query string, k int) (domain.RetrievalResult, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return domain.RetrievalResult{}, nil
	}

	candidateK := s.candidateK
	if candidateK < k {
		candidateK = k * 3
		if candidateK < 20 {
			candidateK = 20
		}
	}

	var (
		wg        sync.WaitGroup
		denseRes  []domain.Candidate
		sparseRes []domain.Candidate
		denseErr  error
		sparseErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		denseRes, denseErr = s.dense.Search(ctx, query, candidateK)
	}()
	go func() {
		defer wg.Done()
		sparseRes, sparseErr = s.sparse.Search(ctx, query, candidateK)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return domain.RetrievalResult{}, err
	}

	if denseErr != nil && sparseErr != nil {
		return domain.RetrievalResult{}, fmt.Errorf("%w: dense: %v; sparse: %v",
			domain.ErrIndexUnavailable, denseErr, sparseErr)
	}

	degraded := false
	if denseErr != nil {
		degraded = true
		s.log.WithError(denseErr).Warn("dense retrieval failed, using sparse only")
	}
	if sparseErr != nil {
		degraded = true
		s.log.WithError(sparseErr).Warn("sparse retrieval failed, using dense only")
	}

	fused := s.fuser.Fuse([][]domain.Candidate{denseRes, sparseRes}, candidateK)
	if len(fused) == 0 {
		return domain.RetrievalResult{Degraded: degraded}, nil
	}

	passages := s.rerank(ctx, query, fused, k)

	return domain.RetrievalResult{Passages: passages, Degraded: degraded}, nil
}

// rerank rescores the fused candidates and truncates to k. A reranker
// failure falls back to the fused order; retrieval still answers.
func (s *Service) rerank(ctx context.Context, query string, fused []domain.Passage, k int) []domain.Passage {
	if s.reranker == nil {
		if len(fused) > k {
			fused = fused[:k]
		}
		return fused
	}

	texts := make([]string, len(fused))
	for i, p := range fused {
		texts[i] = p.Chunk.Text
	}

	reranked, err := s.reranker.Rerank(ctx, query, texts)
	if err != nil {
		s.log.WithError(err).Warn("rerank failed, keeping fusion order")
		if len(fused) > k {
			fused = fused[:k]
		}
		return fused
	}

	results := make([]domain.Passage, 0, k)
	for _, r := range reranked {
		if r.Index >= len(fused) {
			continue
		}
		p := fused[r.Index]
		p.Score = r.Score
		results = append(results, p)
		if len(results) == k {
			break
		}
	}

	// Score descending, chunk ID tiebreak: reproducible final order.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	return results
}
