package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ingest.ChunkSize != 512 {
		t.Errorf("ChunkSize = %d, want 512", cfg.Ingest.ChunkSize)
	}
	if cfg.Ingest.ChunkOverlap != 50 {
		t.Errorf("ChunkOverlap = %d, want 50", cfg.Ingest.ChunkOverlap)
	}
	if cfg.Retrieve.RRFK != 60 {
		t.Errorf("RRFK = %d, want 60", cfg.Retrieve.RRFK)
	}
	if cfg.Retrieve.DenseWeight != 0.5 || cfg.Retrieve.SparseWeight != 0.5 {
		t.Errorf("weights = %v/%v, want 0.5/0.5", cfg.Retrieve.DenseWeight, cfg.Retrieve.SparseWeight)
	}
	if cfg.Retrieve.K1 != 1.5 || cfg.Retrieve.B != 0.75 {
		t.Errorf("BM25 params = %v/%v, want 1.5/0.75", cfg.Retrieve.K1, cfg.Retrieve.B)
	}
	if time.Duration(cfg.Chat.RetrievalTimeout) != 10*time.Second {
		t.Errorf("RetrievalTimeout = %v, want 10s", cfg.Chat.RetrievalTimeout)
	}
	if cfg.Chat.RAGTemplate == "" {
		t.Error("RAGTemplate should have a default")
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.ChunkSize != 512 {
		t.Errorf("expected defaults, got ChunkSize %d", cfg.Ingest.ChunkSize)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.yaml")
	content := `
ingest:
  chunk_size: 256
retrieve:
  top_k: 8
  dense_weight: 0.7
  sparse_weight: 0.3
chat:
  retrieval_timeout: 5s
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.ChunkSize != 256 {
		t.Errorf("ChunkSize = %d, want 256", cfg.Ingest.ChunkSize)
	}
	// Unset fields keep their defaults.
	if cfg.Ingest.ChunkOverlap != 50 {
		t.Errorf("ChunkOverlap = %d, want default 50", cfg.Ingest.ChunkOverlap)
	}
	if cfg.Retrieve.TopK != 8 {
		t.Errorf("TopK = %d, want 8", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.DenseWeight != 0.7 || cfg.Retrieve.SparseWeight != 0.3 {
		t.Errorf("weights = %v/%v", cfg.Retrieve.DenseWeight, cfg.Retrieve.SparseWeight)
	}
	if time.Duration(cfg.Chat.RetrievalTimeout) != 5*time.Second {
		t.Errorf("RetrievalTimeout = %v, want 5s", cfg.Chat.RetrievalTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %s, want debug", cfg.Logging.Level)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.yaml")
	if err := os.WriteFile(path, []byte("chat:\n  retrieval_timeout: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragchat.yaml")

	cfg := DefaultConfig()
	cfg.Retrieve.TopK = 12
	cfg.Chat.RetrievalTimeout = Duration(3 * time.Second)
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Retrieve.TopK != 12 {
		t.Errorf("TopK = %d, want 12", loaded.Retrieve.TopK)
	}
	if time.Duration(loaded.Chat.RetrievalTimeout) != 3*time.Second {
		t.Errorf("RetrievalTimeout = %v, want 3s", loaded.Chat.RetrievalTimeout)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()

	// No config anywhere: defaults.
	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected defaults, got TopK %d", cfg.Retrieve.TopK)
	}

	// .ragchat/config.yaml fallback.
	if err := os.MkdirAll(filepath.Join(dir, ".ragchat"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".ragchat", "config.yaml"), []byte("retrieve:\n  top_k: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieve.TopK != 7 {
		t.Errorf("TopK = %d, want 7", cfg.Retrieve.TopK)
	}

	// ragchat.yaml in the directory takes precedence.
	if err := os.WriteFile(filepath.Join(dir, "ragchat.yaml"), []byte("retrieve:\n  top_k: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieve.TopK != 9 {
		t.Errorf("TopK = %d, want 9", cfg.Retrieve.TopK)
	}

	if got := IndexDBPath(dir); got != filepath.Join(dir, ".ragchat", "index.db") {
		t.Errorf("IndexDBPath = %s", got)
	}
	if got := VectorDBPath(dir); got != filepath.Join(dir, ".ragchat", "vectors.db") {
		t.Errorf("VectorDBPath = %s", got)
	}
}
