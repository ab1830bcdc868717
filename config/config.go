package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ragchat service.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	LLM       LLMConfig       `yaml:"llm"`
	Chat      ChatConfig      `yaml:"chat"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig holds chunking and directory-ingestion configuration.
type IngestConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`    // characters per chunk
	ChunkOverlap int      `yaml:"chunk_overlap"` // overlapping characters between adjacent chunks
	Stemming     bool     `yaml:"stemming"`
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
}

// RetrieveConfig holds retrieval and fusion configuration.
type RetrieveConfig struct {
	TopK         int     `yaml:"top_k"`
	CandidateK   int     `yaml:"candidate_k"` // per-method pool fed into fusion; 0 = derive from top_k
	RRFK         int     `yaml:"rrf_k"`
	DenseWeight  float64 `yaml:"dense_weight"`
	SparseWeight float64 `yaml:"sparse_weight"`
	K1           float64 `yaml:"k1"`
	B            float64 `yaml:"b"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "ollama", "mock"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// RerankerConfig holds cross-encoder reranking configuration.
type RerankerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	BatchSize int    `yaml:"batch_size"`
}

// LLMConfig holds the chat-completion provider configuration. Sampling
// parameters are passed through to the provider opaquely.
type LLMConfig struct {
	Model     string         `yaml:"model"`
	BaseURL   string         `yaml:"base_url"`
	APIKeyEnv string         `yaml:"api_key_env"`
	Sampling  map[string]any `yaml:"sampling"`
}

// Duration accepts values like "10s" or "1m30s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ChatConfig holds orchestrator configuration.
type ChatConfig struct {
	SystemPrompt     string   `yaml:"system_prompt"`
	RAGTemplate      string   `yaml:"rag_template"` // {context} and {query} placeholders
	RetrievalTimeout Duration `yaml:"retrieval_timeout"`
	RetrievalTopK    int      `yaml:"retrieval_top_k"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIKeyEnv string `yaml:"api_key_env"` // optional websocket auth
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultRAGTemplate wraps retrieved passages around the user question.
const DefaultRAGTemplate = "Answer the question using the reference material below. " +
	"If the material does not cover it, say you are not sure.\n\n" +
	"Reference material:\n{context}\n\nQuestion: {query}"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			ChunkSize:    512,
			ChunkOverlap: 50,
			Stemming:     true,
			Includes:     []string{"**/*.txt", "**/*.md", "**/*.markdown", "**/*.html", "**/*.docx"},
			Excludes:     []string{"**/node_modules/**", "**/.git/**"},
		},
		Retrieve: RetrieveConfig{
			TopK:         5,
			CandidateK:   0,
			RRFK:         60,
			DenseWeight:  0.5,
			SparseWeight: 0.5,
			K1:           1.5,
			B:            0.75,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Reranker: RerankerConfig{
			Enabled:   false,
			Model:     "rerank-english-v3.0",
			BaseURL:   "https://api.cohere.ai/v1",
			APIKeyEnv: "COHERE_API_KEY",
			BatchSize: 32,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Chat: ChatConfig{
			RAGTemplate:      DefaultRAGTemplate,
			RetrievalTimeout: Duration(10 * time.Second),
			RetrievalTopK:    5,
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      9100,
			APIKeyEnv: "RAGCHAT_API_KEY",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragchat.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragchat.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragchat", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDir returns the directory holding the on-disk indices.
func DataDir(dir string) string {
	return filepath.Join(dir, ".ragchat")
}

// IndexDBPath returns the path to the chunk/posting index database.
func IndexDBPath(dir string) string {
	return filepath.Join(DataDir(dir), "index.db")
}

// VectorDBPath returns the path to the vector database.
func VectorDBPath(dir string) string {
	return filepath.Join(DataDir(dir), "vectors.db")
}

// EnsureDataDir ensures the data directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
