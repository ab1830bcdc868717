// Package usecase composes the chunker, indices, fusion, and reranker
// behind the retrieval service operations: ingest, retrieve, delete.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/sirupsen/logrus"

	"ragchat/internal/adapter/extractor"
	"ragchat/internal/adapter/retriever"
	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// Service owns the dense and sparse indices and all chunk data. One
// instance serves every chat session; sessions never touch the indices
// directly.
type Service struct {
	store      port.IndexStore
	vectors    port.VectorStore
	embedder   port.Embedder
	extractors *extractor.Registry
	chunker    port.Chunker
	dense      port.Retriever
	sparse     port.Retriever
	fuser      *retriever.Fuser
	reranker   port.Reranker
	candidateK int
	log        *logrus.Logger

	// statsMu serializes corpus-stat read-modify-write across concurrent
	// ingests; per-document atomicity is the isolation unit, stats are the
	// one cross-document value.
	statsMu sync.Mutex
}

type Options struct {
	Store      port.IndexStore
	Vectors    port.VectorStore
	Embedder   port.Embedder
	Extractors *extractor.Registry
	Chunker    port.Chunker
	Dense      port.Retriever
	Sparse     port.Retriever
	Fuser      *retriever.Fuser
	Reranker   port.Reranker
	CandidateK int
	Log        *logrus.Logger
}

func NewService(opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	if opts.Extractors == nil {
		opts.Extractors = extractor.DefaultRegistry()
	}
	return &Service{
		store:      opts.Store,
		vectors:    opts.Vectors,
		embedder:   opts.Embedder,
		extractors: opts.Extractors,
		chunker:    opts.Chunker,
		dense:      opts.Dense,
		sparse:     opts.Sparse,
		fuser:      opts.Fuser,
		reranker:   opts.Reranker,
		candidateK: opts.CandidateK,
		log:        opts.Log,
	}
}

// ListDocuments returns every indexed document.
func (s *Service) ListDocuments(_ context.Context) ([]domain.Document, error) {
	return s.store.ListDocs()
}

// Stats returns the corpus-level counters the sparse scorer depends on.
func (s *Service) Stats(_ context.Context) (domain.Stats, error) {
	return s.store.GetStats()
}

// DocumentID derives the stable document identifier from its ingest name.
// Re-ingesting the same name supersedes the prior document.
func DocumentID(name string) string {
	hash := sha256.Sum256([]byte(name))
	return hex.EncodeToString(hash[:8])
}
