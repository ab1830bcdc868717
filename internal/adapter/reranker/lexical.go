package reranker

import (
	"context"
	"sort"

	"ragchat/internal/port"
)

// Lexical provides term-overlap reranking when no cross-encoder API is
// configured. Cheap, local, and deterministic.
type Lexical struct{}

func NewLexical() *Lexical {
	return &Lexical{}
}

// Rerank scores each text by the fraction of query terms it contains.
func (r *Lexical) Rerank(_ context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	queryTerms := termSet(query)
	if len(queryTerms) == 0 {
		// No signal; preserve the incoming order.
		results := make([]port.RerankedResult, len(texts))
		for i := range texts {
			results[i] = port.RerankedResult{Index: i, Score: 1.0 - float64(i)*0.01}
		}
		return results, nil
	}

	results := make([]port.RerankedResult, len(texts))
	for i, text := range texts {
		results[i] = port.RerankedResult{
			Index: i,
			Score: overlap(queryTerms, text),
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})

	return results, nil
}

func (r *Lexical) ModelName() string {
	return "lexical-overlap"
}

func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) >= 2 {
			terms[string(word)] = struct{}{}
		}
		word = word[:0]
	}
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			word = append(word, r+('a'-'A'))
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			word = append(word, r)
		case r > 127:
			flush()
			terms[string(r)] = struct{}{}
		default:
			flush()
		}
	}
	flush()
	return terms
}

func overlap(queryTerms map[string]struct{}, text string) float64 {
	textTerms := termSet(text)
	if len(textTerms) == 0 {
		return 0
	}
	matches := 0
	for term := range queryTerms {
		if _, ok := textTerms[term]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms))
}
