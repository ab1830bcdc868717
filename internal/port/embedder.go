package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore stores and searches embedding vectors.
type VectorStore interface {
	// Upsert adds or replaces vectors. Idempotent by item ID.
	Upsert(items []VectorItem) error

	// Search finds the k nearest vectors to the query.
	Search(query []float32, k int) ([]VectorResult, error)

	// DeleteByDoc removes every vector belonging to the document.
	DeleteByDoc(docID string) error

	// Count returns the number of vectors in the store.
	Count() (int, error)
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID     string // chunk ID
	DocID  string
	Vector []float32
}

// VectorResult represents a search result.
type VectorResult struct {
	ID    string  // chunk ID
	Score float64 // similarity, higher is better
}
