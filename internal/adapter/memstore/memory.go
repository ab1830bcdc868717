// Package memstore provides in-memory implementations of the index and
// vector store ports. Used by tests and by ephemeral deployments that do
// not need persistence.
package memstore

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]domain.Document
	names     map[string]string
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
	postings  map[string][]domain.Posting
	stats     domain.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]domain.Document),
		names:     make(map[string]string),
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
		postings:  make(map[string][]domain.Posting),
	}
}

func (s *MemoryStore) PutDoc(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	s.names[doc.Name] = doc.ID
	return nil
}

func (s *MemoryStore) GetDoc(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	return doc, nil
}

func (s *MemoryStore) FindDocByName(name string) (domain.Document, error) {
	s.mu.RLock()
	id, ok := s.names[name]
	s.mu.RUnlock()
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, name)
	}
	return s.GetDoc(id)
}

func (s *MemoryStore) DeleteDoc(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[id]; ok {
		delete(s.names, doc.Name)
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *MemoryStore) PutChunk(chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chunks[chunk.ID]; !exists {
		s.docChunks[chunk.DocID] = append(s.docChunks[chunk.DocID], chunk.ID)
	}
	s.chunks[chunk.ID] = chunk
	return nil
}

func (s *MemoryStore) GetChunk(id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("%w: %s", domain.ErrChunkNotFound, id)
	}
	return chunk, nil
}

func (s *MemoryStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunkIDs := s.docChunks[docID]
	chunks := make([]domain.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) DeleteChunksByDoc(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.docChunks[docID] {
		delete(s.chunks, id)
	}
	delete(s.docChunks, docID)
	return nil
}

func (s *MemoryStore) PutPosting(term string, chunkID string, tf int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.postings[term] {
		if p.ChunkID == chunkID {
			s.postings[term][i].TF = tf
			return nil
		}
	}
	s.postings[term] = append(s.postings[term], domain.Posting{
		ChunkID: chunkID,
		TF:      tf,
	})
	return nil
}

func (s *MemoryStore) GetPostings(term string) ([]domain.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postings[term], nil
}

func (s *MemoryStore) DeletePostings(chunkID string, terms []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, term := range terms {
		filtered := make([]domain.Posting, 0)
		for _, p := range s.postings[term] {
			if p.ChunkID != chunkID {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(s.postings, term)
		} else {
			s.postings[term] = filtered
		}
	}
	return nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) UpdateStats(stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// MemoryVectorStore is the in-memory counterpart of the bolt vector store.
type MemoryVectorStore struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float32
	docIDs    map[string]string
}

func NewMemoryVectorStore(dimension int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimension: dimension,
		vectors:   make(map[string][]float32),
		docIDs:    make(map[string]string),
	}
}

func (s *MemoryVectorStore) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
		}
		s.vectors[item.ID] = item.Vector
		s.docIDs[item.ID] = item.DocID
	}
	return nil
}

func (s *MemoryVectorStore) Search(query []float32, k int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}
	if k <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}

	results := make([]port.VectorResult, 0, len(s.vectors))
	for id, vec := range s.vectors {
		results = append(results, port.VectorResult{ID: id, Score: cosine(query, vec)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryVectorStore) DeleteByDoc(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.docIDs {
		if d == docID {
			delete(s.vectors, id)
			delete(s.docIDs, id)
		}
	}
	return nil
}

func (s *MemoryVectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
