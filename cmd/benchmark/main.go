// Benchmark compares sparse, dense, and fused retrieval over an existing
// index: per-method latency and result overlap for one query.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"ragchat/config"
	"ragchat/internal/adapter/analyzer"
	"ragchat/internal/adapter/embedding"
	"ragchat/internal/adapter/retriever"
	"ragchat/internal/adapter/store"
	"ragchat/internal/domain"
	"ragchat/internal/port"
)

func main() {
	indexPath := flag.String("index", ".", "path to ingested directory")
	query := flag.String("q", "", "query to test")
	topK := flag.Int("k", 10, "number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -index ./tmp -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Per-method retrieval latency (sparse BM25 vs dense cosine)")
		fmt.Println("  2. Result overlap between methods")
		fmt.Println("  3. Fused ranking with reciprocal-rank fusion")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(*indexPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	vdb, err := bbolt.Open(config.VectorDBPath(*indexPath), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vector database: %v\n", err)
		os.Exit(1)
	}
	defer vdb.Close()

	vectors, err := store.NewBoltVectorStore(vdb, cfg.Embedding.Dimension)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vector store: %v\n", err)
		os.Exit(1)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder not available: %v\n", err)
		os.Exit(1)
	}

	tokenizer := analyzer.NewTokenizer(cfg.Ingest.Stemming)
	sparse := retriever.NewSparseRetriever(st, tokenizer, cfg.Retrieve.K1, cfg.Retrieve.B)
	dense := retriever.NewDenseRetriever(vectors, embedder, st)
	fuser := retriever.NewFuser(cfg.Retrieve.RRFK, cfg.Retrieve.DenseWeight, cfg.Retrieve.SparseWeight)

	fmt.Println("HYBRID RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	count, _ := vectors.Count()
	stats, _ := st.GetStats()
	fmt.Printf("Documents: %d  Chunks: %d  Vectors: %d\n", stats.TotalDocs, stats.TotalChunks, count)
	fmt.Printf("Embedding: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Query: %q\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()

	sparseResults, sparseElapsed := timeSearch(ctx, sparse, *query, *topK)
	denseResults, denseElapsed := timeSearch(ctx, dense, *query, *topK)

	fmt.Printf("\nSparse (BM25):  %d results in %s\n", len(sparseResults), sparseElapsed)
	printCandidates(st, sparseResults)
	fmt.Printf("\nDense (cosine): %d results in %s\n", len(denseResults), denseElapsed)
	printCandidates(st, denseResults)

	fmt.Printf("\nOverlap: %d of %d chunks appear in both methods\n",
		overlap(sparseResults, denseResults), *topK)

	fused := fuser.Fuse([][]domain.Candidate{denseResults, sparseResults}, *topK)
	fmt.Printf("\nFused ranking (rrf_k=%d, weights %.2f/%.2f):\n",
		cfg.Retrieve.RRFK, cfg.Retrieve.DenseWeight, cfg.Retrieve.SparseWeight)
	for i, p := range fused {
		methods := make([]string, len(p.Methods))
		for j, m := range p.Methods {
			methods[j] = string(m)
		}
		fmt.Printf("  %2d. %-24s %.4f  %v\n", i+1, p.Chunk.ID, p.Score, methods)
	}
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

func timeSearch(ctx context.Context, r port.Retriever, query string, k int) ([]domain.Candidate, time.Duration) {
	start := time.Now()
	results, err := r.Search(ctx, query, k)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s search error: %v\n", r.Method(), err)
	}
	return results, elapsed
}

func printCandidates(st *store.BoltStore, results []domain.Candidate) {
	for i, c := range results {
		doc, _ := st.GetDoc(c.Chunk.DocID)
		fmt.Printf("  %2d. %-24s %.4f  %s\n", i+1, c.Chunk.ID, c.Score, doc.Name)
	}
}

func overlap(a, b []domain.Candidate) int {
	seen := make(map[string]bool, len(a))
	for _, c := range a {
		seen[c.Chunk.ID] = true
	}
	n := 0
	for _, c := range b {
		if seen[c.Chunk.ID] {
			n++
		}
	}
	return n
}
