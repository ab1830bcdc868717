package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when a document's format has no
	// extractor. User-correctable; ingestion is aborted before indexing.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrIndexUnavailable is returned when an index store is unreachable.
	// Fatal for ingestion writes, non-fatal for a single read query.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrSessionBusy is returned when a chat turn arrives while a previous
	// turn is still generating.
	ErrSessionBusy = errors.New("generation already in progress")

	// ErrDocumentNotFound is returned by store lookups for absent keys.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrChunkNotFound is returned by store lookups for absent chunk IDs.
	ErrChunkNotFound = errors.New("chunk not found")
)

// EmbeddingError wraps a failed external embedding call. Batch-scoped:
// non-fatal to a retrieval when sparse results remain usable.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// RerankError wraps a failed external rerank call for one batch.
type RerankError struct {
	Batch int
	Err   error
}

func (e *RerankError) Error() string { return fmt.Sprintf("rerank batch %d: %v", e.Batch, e.Err) }
func (e *RerankError) Unwrap() error { return e.Err }

// ProviderError wraps an LLM stream failure. Surfaced to the client as an
// error notice; the session returns to awaiting input.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("provider: %v", e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// ProtocolError marks a malformed inbound client message. The session
// stays open; only the offending message is rejected.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol: " + e.Reason }
