package port

import (
	"context"

	"ragchat/internal/domain"
)

// Retriever is one retrieval method (dense or sparse) over the indexed
// corpus. The fusion stage iterates a fixed set of method outputs.
type Retriever interface {
	// Search returns the top-k candidates for the query, ordered by
	// descending score.
	Search(ctx context.Context, query string, k int) ([]domain.Candidate, error)

	// Method tags candidates produced by this retriever.
	Method() domain.Method
}
