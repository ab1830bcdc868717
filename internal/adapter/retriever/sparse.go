package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// SparseRetriever scores chunks with BM25 over the posting index.
type SparseRetriever struct {
	store     port.IndexStore
	tokenizer port.Tokenizer
	k1        float64
	b         float64
}

func NewSparseRetriever(store port.IndexStore, tokenizer port.Tokenizer, k1, b float64) *SparseRetriever {
	if k1 <= 0 {
		k1 = 1.5
	}
	if b <= 0 || b > 1 {
		b = 0.75
	}
	return &SparseRetriever{
		store:     store,
		tokenizer: tokenizer,
		k1:        k1,
		b:         b,
	}
}

func (r *SparseRetriever) Method() domain.Method {
	return domain.MethodSparse
}

func (r *SparseRetriever) Search(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	queryTokens := r.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 || k <= 0 {
		return nil, nil
	}

	stats, err := r.store.GetStats()
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", domain.ErrIndexUnavailable, err)
	}
	if stats.TotalChunks == 0 {
		return nil, nil
	}

	chunkScores := make(map[string]float64)
	chunkLengths := make(map[string]int)

	for _, term := range queryTokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		postings, err := r.store.GetPostings(term)
		if err != nil {
			continue
		}

		n := float64(len(postings))
		N := float64(stats.TotalChunks)
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			if _, exists := chunkLengths[posting.ChunkID]; !exists {
				chunk, err := r.store.GetChunk(posting.ChunkID)
				if err != nil {
					continue
				}
				chunkLengths[posting.ChunkID] = len(chunk.Tokens)
			}

			dl := float64(chunkLengths[posting.ChunkID])
			avgDl := stats.AvgChunkLen
			if avgDl == 0 {
				avgDl = dl
			}
			tf := float64(posting.TF)

			score := idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/avgDl))
			chunkScores[posting.ChunkID] += score
		}
	}

	results := make([]domain.Candidate, 0, len(chunkScores))
	for chunkID, score := range chunkScores {
		chunk, err := r.store.GetChunk(chunkID)
		if err != nil {
			continue
		}
		results = append(results, domain.Candidate{
			Chunk:  chunk,
			Score:  score,
			Method: domain.MethodSparse,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}
