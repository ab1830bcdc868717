package domain

import "time"

// Format identifies the document input format accepted by the extractors.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
)

type Document struct {
	ID         string
	Name       string
	Format     Format
	IngestedAt time.Time
}

type Chunk struct {
	ID     string
	DocID  string
	Seq    int
	Start  int
	End    int
	Tokens []string
	Text   string
}

// Method tags which retrieval path produced a candidate.
type Method string

const (
	MethodDense  Method = "dense"
	MethodSparse Method = "sparse"
)

// Candidate is one retrieval hit from a single method. Ephemeral, exists
// only during one retrieval call.
type Candidate struct {
	Chunk  Chunk
	Score  float64
	Method Method
}

// Passage is a final ranked retrieval result handed to the orchestrator.
type Passage struct {
	Chunk   Chunk
	Score   float64
	Methods []Method
}

// RetrievalResult is the ordered passage list for one query. Degraded is set
// when one retrieval method failed and fusion proceeded on the survivor.
type RetrievalResult struct {
	Passages []Passage
	Degraded bool
}

type Posting struct {
	ChunkID string
	TF      int
}

type Stats struct {
	TotalDocs   int
	TotalChunks int
	AvgChunkLen float64
}

// Message is one role-tagged entry in a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
