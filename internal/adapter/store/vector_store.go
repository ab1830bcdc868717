package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"
	"ragchat/internal/port"
)

var (
	bucketVectors    = []byte("vectors")
	bucketDocVectors = []byte("doc_vectors")
)

// BoltVectorStore implements VectorStore using BoltDB for persistence.
// Uses brute-force cosine search over an in-memory cache; adequate for
// corpora up to the tens of thousands of chunks this service targets.
type BoltVectorStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	vectors   map[string]vectorEntry
}

type vectorEntry struct {
	docID  string
	vector []float32
}

type storedVector struct {
	DocID  string    `json:"d"`
	Vector []float32 `json:"v"`
}

// NewBoltVectorStore creates a new BoltDB-backed vector store.
func NewBoltVectorStore(db *bbolt.DB, dimension int) (*BoltVectorStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketDocVectors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vector buckets: %w", err)
	}

	store := &BoltVectorStore{
		db:        db,
		dimension: dimension,
		vectors:   make(map[string]vectorEntry),
	}

	if err := store.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return store, nil
}

// loadVectors loads all vectors from BoltDB into memory.
func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			s.vectors[string(k)] = vectorEntry{
				docID:  stored.DocID,
				vector: stored.Vector,
			}
			return nil
		})
	})
}

// Upsert adds or replaces vectors. Re-upserting a chunk ID replaces the
// prior vector. The in-memory cache only picks up the batch once the
// transaction commits, so a failed write leaves no phantom entries.
func (s *BoltVectorStore) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]vectorEntry, len(items))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		docIdx := tx.Bucket(bucketDocVectors)

		for _, item := range items {
			if len(item.Vector) != s.dimension {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
			}

			stored := storedVector{DocID: item.DocID, Vector: item.Vector}
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}

			var ids []string
			if existing := docIdx.Get([]byte(item.DocID)); existing != nil {
				json.Unmarshal(existing, &ids)
			}
			if !contains(ids, item.ID) {
				ids = append(ids, item.ID)
				idsData, _ := json.Marshal(ids)
				if err := docIdx.Put([]byte(item.DocID), idsData); err != nil {
					return err
				}
			}

			staged[item.ID] = vectorEntry{docID: item.DocID, vector: item.Vector}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for id, entry := range staged {
		s.vectors[id] = entry
	}
	return nil
}

// Search finds the k nearest vectors to the query using cosine similarity.
func (s *BoltVectorStore) Search(query []float32, k int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	type scored struct {
		id    string
		score float64
	}

	scores := make([]scored, 0, len(s.vectors))
	for id, entry := range s.vectors {
		scores = append(scores, scored{id: id, score: cosineSimilarity(query, entry.vector)})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].id < scores[j].id
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]port.VectorResult, k)
	for i := 0; i < k; i++ {
		results[i] = port.VectorResult{ID: scores[i].id, Score: scores[i].score}
	}

	return results, nil
}

// DeleteByDoc removes every vector belonging to the document. Deleting an
// absent document is a no-op.
func (s *BoltVectorStore) DeleteByDoc(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		docIdx := tx.Bucket(bucketDocVectors)

		data := docIdx.Get([]byte(docID))
		if data == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}

		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
			delete(s.vectors, id)
		}

		return docIdx.Delete([]byte(docID))
	})
}

// Count returns the number of vectors in the store.
func (s *BoltVectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
