package cli

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"ragchat/config"
	"ragchat/internal/adapter/analyzer"
	"ragchat/internal/adapter/chunker"
	"ragchat/internal/adapter/embedding"
	"ragchat/internal/adapter/reranker"
	"ragchat/internal/adapter/retriever"
	"ragchat/internal/adapter/store"
	"ragchat/internal/port"
	"ragchat/internal/usecase"
)

// buildService assembles the retrieval service from configuration. The
// returned cleanup closes both databases.
func buildService(dir string, cfg *config.Config) (*usecase.Service, func(), error) {
	if err := config.EnsureDataDir(dir); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(dir))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open index store: %w", err)
	}

	vdb, err := bbolt.Open(config.VectorDBPath(dir), 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	cleanup := func() {
		vdb.Close()
		st.Close()
	}

	vectors, err := store.NewBoltVectorStore(vdb, cfg.Embedding.Dimension)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	tokenizer := analyzer.NewTokenizer(cfg.Ingest.Stemming)
	chk := chunker.NewWindowChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, tokenizer)

	dense := retriever.NewDenseRetriever(vectors, embedder, st)
	sparse := retriever.NewSparseRetriever(st, tokenizer, cfg.Retrieve.K1, cfg.Retrieve.B)
	fuser := retriever.NewFuser(cfg.Retrieve.RRFK, cfg.Retrieve.DenseWeight, cfg.Retrieve.SparseWeight)

	rr, err := buildReranker(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc := usecase.NewService(usecase.Options{
		Store:      st,
		Vectors:    vectors,
		Embedder:   embedder,
		Chunker:    chk,
		Dense:      dense,
		Sparse:     sparse,
		Fuser:      fuser,
		Reranker:   rr,
		CandidateK: cfg.Retrieve.CandidateK,
		Log:        log,
	})

	return svc, cleanup, nil
}

func buildEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.Dimension, e.BatchSize)
	case "ollama":
		return embedding.NewOllamaEmbedder(e.Model, e.BaseURL, e.Dimension, e.BatchSize), nil
	case "mock":
		return embedding.NewMockEmbedder(e.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", e.Provider)
	}
}

func buildReranker(cfg *config.Config) (port.Reranker, error) {
	if !cfg.Reranker.Enabled {
		// No cross-encoder API configured; fall back to local term-overlap
		// scoring so fused candidates are still reranked.
		return reranker.NewBatched(reranker.NewLexical(), cfg.Reranker.BatchSize, log), nil
	}
	inner, err := reranker.NewHTTPReranker(cfg.Reranker.APIKeyEnv, cfg.Reranker.Model, cfg.Reranker.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure reranker: %w", err)
	}
	return reranker.NewBatched(inner, cfg.Reranker.BatchSize, log), nil
}
