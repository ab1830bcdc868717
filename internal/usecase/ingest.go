package usecase

import (
	"context"
	"fmt"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// IngestResult reports what one ingest call wrote.
type IngestResult struct {
	DocID       string
	ChunksAdded int
}

// Ingest extracts, chunks, embeds, and indexes one document. Atomic per
// document: any failure past the first write rolls back every chunk
// already written for this document ID before returning the error.
// Re-ingesting an existing name supersedes the prior version.
func (s *Service) Ingest(ctx context.Context, name string, data []byte) (IngestResult, error) {
	text, format, err := s.extractors.Extract(name, data)
	if err != nil {
		return IngestResult{}, err
	}

	docID := DocumentID(name)

	// Supersede any prior version before writing the new one.
	if err := s.DeleteDocument(ctx, docID); err != nil {
		return IngestResult{}, fmt.Errorf("failed to supersede document: %w", err)
	}

	doc := domain.Document{
		ID:         docID,
		Name:       name,
		Format:     format,
		IngestedAt: time.Now(),
	}

	chunks, err := s.chunker.Chunk(doc, text)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return IngestResult{DocID: docID}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return IngestResult{}, err
	}
	if len(vecs) != len(chunks) {
		return IngestResult{}, &domain.EmbeddingError{
			Err: fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks)),
		}
	}

	if err := s.writeDocument(doc, chunks, vecs); err != nil {
		s.rollback(docID)
		return IngestResult{}, err
	}

	s.adjustStats(1, chunks)

	s.log.WithFields(map[string]any{
		"doc":    name,
		"chunks": len(chunks),
	}).Info("document ingested")

	return IngestResult{DocID: docID, ChunksAdded: len(chunks)}, nil
}

func (s *Service) writeDocument(doc domain.Document, chunks []domain.Chunk, vecs [][]float32) error {
	if err := s.store.PutDoc(doc); err != nil {
		return fmt.Errorf("%w: put document: %v", domain.ErrIndexUnavailable, err)
	}

	items := make([]port.VectorItem, len(chunks))
	for i, chunk := range chunks {
		items[i] = port.VectorItem{ID: chunk.ID, DocID: doc.ID, Vector: vecs[i]}
	}
	if err := s.vectors.Upsert(items); err != nil {
		return fmt.Errorf("%w: vector upsert: %v", domain.ErrIndexUnavailable, err)
	}

	for _, chunk := range chunks {
		if err := s.store.PutChunk(chunk); err != nil {
			return fmt.Errorf("%w: put chunk: %v", domain.ErrIndexUnavailable, err)
		}

		tf := make(map[string]int)
		for _, token := range chunk.Tokens {
			tf[token]++
		}
		for term, count := range tf {
			if err := s.store.PutPosting(term, chunk.ID, count); err != nil {
				return fmt.Errorf("%w: put posting: %v", domain.ErrIndexUnavailable, err)
			}
		}
	}

	return nil
}

// rollback removes everything written for the document. Best effort: the
// ingest error is surfaced either way, and chunk deletion is idempotent.
func (s *Service) rollback(docID string) {
	if err := s.deleteDocumentData(docID); err != nil {
		s.log.WithError(err).WithField("doc_id", docID).Error("ingest rollback failed")
	}
}

// DeleteDocument removes a document's chunks from both indices. Deleting
// an absent document is a no-op, not an error.
func (s *Service) DeleteDocument(_ context.Context, docID string) error {
	chunks, err := s.store.GetChunksByDoc(docID)
	if err != nil {
		return fmt.Errorf("%w: list chunks: %v", domain.ErrIndexUnavailable, err)
	}
	if len(chunks) == 0 {
		// Still drop any dangling doc record.
		s.store.DeleteDoc(docID)
		return nil
	}

	if err := s.deleteDocumentData(docID); err != nil {
		return err
	}

	s.adjustStats(-1, chunks)
	return nil
}

func (s *Service) deleteDocumentData(docID string) error {
	chunks, err := s.store.GetChunksByDoc(docID)
	if err != nil {
		return err
	}

	for _, chunk := range chunks {
		uniqueTerms := make(map[string]struct{})
		for _, token := range chunk.Tokens {
			uniqueTerms[token] = struct{}{}
		}
		terms := make([]string, 0, len(uniqueTerms))
		for term := range uniqueTerms {
			terms = append(terms, term)
		}
		if err := s.store.DeletePostings(chunk.ID, terms); err != nil {
			return err
		}
	}

	if err := s.store.DeleteChunksByDoc(docID); err != nil {
		return err
	}
	if err := s.vectors.DeleteByDoc(docID); err != nil {
		return err
	}
	return s.store.DeleteDoc(docID)
}

// adjustStats applies a document delta to the corpus stats used by BM25.
func (s *Service) adjustStats(docDelta int, chunks []domain.Chunk) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats, err := s.store.GetStats()
	if err != nil {
		return
	}

	tokenDelta := 0
	for _, c := range chunks {
		tokenDelta += len(c.Tokens)
	}

	totalTokens := stats.AvgChunkLen * float64(stats.TotalChunks)

	stats.TotalDocs += docDelta
	if docDelta >= 0 {
		stats.TotalChunks += len(chunks)
		totalTokens += float64(tokenDelta)
	} else {
		stats.TotalChunks -= len(chunks)
		totalTokens -= float64(tokenDelta)
	}

	if stats.TotalDocs < 0 {
		stats.TotalDocs = 0
	}
	if stats.TotalChunks > 0 {
		stats.AvgChunkLen = totalTokens / float64(stats.TotalChunks)
	} else {
		stats.TotalChunks = 0
		stats.AvgChunkLen = 0
	}

	if err := s.store.UpdateStats(stats); err != nil {
		s.log.WithError(err).Warn("failed to update corpus stats")
	}
}
