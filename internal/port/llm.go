package port

import (
	"context"

	"ragchat/internal/domain"
)

// StreamEvent is one increment of a streaming generation. The channel is
// closed after the final event; an event with Err set terminates the stream.
type StreamEvent struct {
	Delta string
	Err   error
}

// ChatModel streams chat completions from an external LLM provider.
type ChatModel interface {
	// Stream opens a token stream for the given messages. Sampling options
	// are passed through to the provider opaquely. Cancelling the context
	// aborts the stream; the returned channel is single-consumer and is
	// closed when generation completes or fails.
	Stream(ctx context.Context, messages []domain.Message, options map[string]any) (<-chan StreamEvent, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// Reranker scores query-passage pairs for relevance.
type Reranker interface {
	// Rerank scores the passage texts against the query.
	// Returns results sorted by relevance score (highest first).
	Rerank(ctx context.Context, query string, texts []string) ([]RerankedResult, error)

	// ModelName returns the name of the reranking model.
	ModelName() string
}

// RerankedResult represents a reranked passage.
type RerankedResult struct {
	Index int     // Original index in the input slice
	Score float64 // Relevance score (higher is better)
}
