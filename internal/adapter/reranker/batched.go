package reranker

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// Batched splits candidate sets into bounded scorer calls. A failing
// sub-batch is dropped with a warning; remaining batches still produce a
// usable result. Rerank fails only when every batch fails.
type Batched struct {
	inner     port.Reranker
	batchSize int
	log       *logrus.Logger
}

func NewBatched(inner port.Reranker, batchSize int, log *logrus.Logger) *Batched {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Batched{
		inner:     inner,
		batchSize: batchSize,
		log:       log,
	}
}

func (b *Batched) Rerank(ctx context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var merged []port.RerankedResult
	var lastErr error
	failed := 0

	for batch, start := 0, 0; start < len(texts); batch, start = batch+1, start+b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		results, err := b.inner.Rerank(ctx, query, texts[start:end])
		if err != nil {
			lastErr = &domain.RerankError{Batch: batch, Err: err}
			failed++
			if b.log != nil {
				b.log.WithError(err).WithField("batch", batch).Warn("rerank batch dropped")
			}
			continue
		}

		for _, r := range results {
			merged = append(merged, port.RerankedResult{
				Index: start + r.Index,
				Score: r.Score,
			})
		}
	}

	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Index < merged[j].Index
	})

	return merged, nil
}

func (b *Batched) ModelName() string {
	return b.inner.ModelName()
}
