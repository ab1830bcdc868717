package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"ragchat/internal/domain"
)

var (
	bucketDocs      = []byte("docs")
	bucketDocNames  = []byte("doc_names")
	bucketChunks    = []byte("chunks")
	bucketBlobs     = []byte("blobs")
	bucketTerms     = []byte("terms")
	bucketStats     = []byte("stats")
	bucketDocChunks = []byte("doc_chunks")
	keyStats        = []byte("corpus_stats")
)

// BoltStore persists documents, chunks, and the sparse posting index.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrIndexUnavailable, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketDocs, bucketDocNames, bucketChunks, bucketBlobs, bucketTerms, bucketStats, bucketDocChunks}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type docMeta struct {
	Name       string `json:"name"`
	Format     string `json:"format"`
	IngestedAt int64  `json:"ingested_at"`
}

type chunkMeta struct {
	DocID  string   `json:"doc_id"`
	Seq    int      `json:"seq"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Tokens []string `json:"tokens"`
}

func (s *BoltStore) PutDoc(doc domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := docMeta{
			Name:       doc.Name,
			Format:     string(doc.Format),
			IngestedAt: doc.IngestedAt.Unix(),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketDocNames).Put([]byte(doc.Name), []byte(doc.ID))
	})
}

func (s *BoltStore) GetDoc(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = domain.Document{
			ID:         id,
			Name:       meta.Name,
			Format:     domain.Format(meta.Format),
			IngestedAt: time.Unix(meta.IngestedAt, 0),
		}
		return nil
	})
	return doc, err
}

// FindDocByName resolves a document by its ingest name. Re-ingesting the
// same name supersedes the prior document, so names map to one ID.
func (s *BoltStore) FindDocByName(name string) (domain.Document, error) {
	var id string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocNames).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, name)
		}
		id = string(data)
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return s.GetDoc(id)
}

func (s *BoltStore) DeleteDoc(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data != nil {
			var meta docMeta
			if err := json.Unmarshal(data, &meta); err == nil {
				tx.Bucket(bucketDocNames).Delete([]byte(meta.Name))
			}
		}
		return tx.Bucket(bucketDocs).Delete([]byte(id))
	})
}

func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocs)
		return b.ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, domain.Document{
				ID:         string(k),
				Name:       meta.Name,
				Format:     domain.Format(meta.Format),
				IngestedAt: time.Unix(meta.IngestedAt, 0),
			})
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) PutChunk(chunk domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := chunkMeta{
			DocID:  chunk.DocID,
			Seq:    chunk.Seq,
			Start:  chunk.Start,
			End:    chunk.End,
			Tokens: chunk.Tokens,
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketChunks).Put([]byte(chunk.ID), data); err != nil {
			return err
		}

		if err := tx.Bucket(bucketBlobs).Put([]byte(chunk.ID), []byte(chunk.Text)); err != nil {
			return err
		}

		docChunks := tx.Bucket(bucketDocChunks)
		var chunkIDs []string
		if existing := docChunks.Get([]byte(chunk.DocID)); existing != nil {
			json.Unmarshal(existing, &chunkIDs)
		}
		for _, id := range chunkIDs {
			if id == chunk.ID {
				return nil // re-upsert of the same chunk
			}
		}
		chunkIDs = append(chunkIDs, chunk.ID)
		chunkIDsData, _ := json.Marshal(chunkIDs)
		return docChunks.Put([]byte(chunk.DocID), chunkIDsData)
	})
}

func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrChunkNotFound, id)
		}
		var meta chunkMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		text := tx.Bucket(bucketBlobs).Get([]byte(id))
		chunk = domain.Chunk{
			ID:     id,
			DocID:  meta.DocID,
			Seq:    meta.Seq,
			Start:  meta.Start,
			End:    meta.End,
			Tokens: meta.Tokens,
			Text:   string(text),
		}
		return nil
	})
	return chunk, err
}

func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		docChunks := tx.Bucket(bucketDocChunks)
		data := docChunks.Get([]byte(docID))
		if data == nil {
			return nil
		}
		var chunkIDs []string
		if err := json.Unmarshal(data, &chunkIDs); err != nil {
			return err
		}
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		for _, id := range chunkIDs {
			data := chunkBucket.Get([]byte(id))
			if data == nil {
				continue
			}
			var meta chunkMeta
			if err := json.Unmarshal(data, &meta); err != nil {
				continue
			}
			text := blobBucket.Get([]byte(id))
			chunks = append(chunks, domain.Chunk{
				ID:     id,
				DocID:  meta.DocID,
				Seq:    meta.Seq,
				Start:  meta.Start,
				End:    meta.End,
				Tokens: meta.Tokens,
				Text:   string(text),
			})
		}
		return nil
	})
	return chunks, err
}

func (s *BoltStore) DeleteChunksByDoc(docID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docChunks := tx.Bucket(bucketDocChunks)
		data := docChunks.Get([]byte(docID))
		if data == nil {
			return nil
		}
		var chunkIDs []string
		if err := json.Unmarshal(data, &chunkIDs); err != nil {
			return err
		}
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		for _, id := range chunkIDs {
			chunkBucket.Delete([]byte(id))
			blobBucket.Delete([]byte(id))
		}
		return docChunks.Delete([]byte(docID))
	})
}

func (s *BoltStore) PutPosting(term string, chunkID string, tf int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTerms)
		var postings []domain.Posting
		if data := b.Get([]byte(term)); data != nil {
			json.Unmarshal(data, &postings)
		}

		found := false
		for i := range postings {
			if postings[i].ChunkID == chunkID {
				postings[i].TF = tf
				found = true
				break
			}
		}
		if !found {
			postings = append(postings, domain.Posting{ChunkID: chunkID, TF: tf})
		}
		data, err := json.Marshal(postings)
		if err != nil {
			return err
		}
		return b.Put([]byte(term), data)
	})
}

func (s *BoltStore) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltStore) DeletePostings(chunkID string, terms []string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTerms)
		for _, term := range terms {
			data := b.Get([]byte(term))
			if data == nil {
				continue
			}
			var postings []domain.Posting
			if err := json.Unmarshal(data, &postings); err != nil {
				continue
			}

			filtered := make([]domain.Posting, 0, len(postings))
			for _, p := range postings {
				if p.ChunkID != chunkID {
					filtered = append(filtered, p)
				}
			}
			if len(filtered) == 0 {
				b.Delete([]byte(term))
			} else {
				data, _ := json.Marshal(filtered)
				b.Put([]byte(term), data)
			}
		}
		return nil
	})
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltStore) UpdateStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put(keyStats, data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
