package chunker

import (
	"fmt"
	"strings"

	"ragchat/internal/adapter/analyzer"
	"ragchat/internal/domain"
)

// WindowChunker splits document text into overlapping fixed-size windows.
// Deterministic for a given document and configuration. Offsets are rune
// based so multi-byte text never splits mid-character.
type WindowChunker struct {
	size      int
	overlap   int
	tokenizer *analyzer.Tokenizer
}

func NewWindowChunker(size, overlap int, tokenizer *analyzer.Tokenizer) *WindowChunker {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &WindowChunker{
		size:      size,
		overlap:   overlap,
		tokenizer: tokenizer,
	}
}

func (c *WindowChunker) Chunk(doc domain.Document, content string) ([]domain.Chunk, error) {
	runes := []rune(content)
	if len(strings.TrimSpace(content)) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	seq := 0
	start := 0

	for start < len(runes) {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		text := string(runes[start:end])
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, domain.Chunk{
				ID:     ChunkID(doc.ID, seq),
				DocID:  doc.ID,
				Seq:    seq,
				Start:  start,
				End:    end,
				Tokens: c.tokenizer.Tokenize(text),
				Text:   text,
			})
			seq++
		}

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}

	return chunks, nil
}

// ChunkID builds the stable chunk identifier: document ID plus sequence
// index. Sorts lexicographically within a document up to 4 digits.
func ChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s:%04d", docID, seq)
}
