package retriever

import (
	"context"
	"fmt"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// DenseRetriever embeds the query and searches the vector store.
type DenseRetriever struct {
	vectorStore port.VectorStore
	embedder    port.Embedder
	chunkStore  port.IndexStore
}

func NewDenseRetriever(
	vectorStore port.VectorStore,
	embedder port.Embedder,
	chunkStore port.IndexStore,
) *DenseRetriever {
	return &DenseRetriever{
		vectorStore: vectorStore,
		embedder:    embedder,
		chunkStore:  chunkStore,
	}
}

func (r *DenseRetriever) Method() domain.Method {
	return domain.MethodDense
}

func (r *DenseRetriever) Search(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	results, err := r.vectorStore.Search(embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", domain.ErrIndexUnavailable, err)
	}

	candidates := make([]domain.Candidate, 0, len(results))
	for _, result := range results {
		chunk, err := r.chunkStore.GetChunk(result.ID)
		if err != nil {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Chunk:  chunk,
			Score:  result.Score,
			Method: domain.MethodDense,
		})
	}

	return candidates, nil
}
