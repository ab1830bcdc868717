package analyzer

import (
	"testing"
)

func TestTokenizer_Tokenize_WithStemming(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("dogs are playing fields")
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %d: %v", len(tokens), tokens)
	}

	hasDog := false
	hasPlay := false
	for _, token := range tokens {
		if token == "dog" {
			hasDog = true
		}
		if token == "play" {
			hasPlay = true
		}
	}
	if !hasDog {
		t.Errorf("expected 'dogs' to be stemmed to 'dog', got %v", tokens)
	}
	if !hasPlay {
		t.Errorf("expected 'playing' to be stemmed to 'play', got %v", tokens)
	}
}

func TestTokenizer_Tokenize_WithoutStemming(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("running dogs are playing")
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %d: %v", len(tokens), tokens)
	}

	hasRunning := false
	for _, token := range tokens {
		if token == "running" {
			hasRunning = true
		}
	}
	if !hasRunning {
		t.Errorf("expected 'running' to remain unstemmed, got %v", tokens)
	}
}

func TestTokenizer_StemCollapsesInflections(t *testing.T) {
	tok := NewTokenizer(true)

	pairs := [][2]string{
		{"policies", "policy"},
		{"refunded", "refund"},
		{"tokens", "token"},
	}
	for _, p := range pairs {
		got := tok.Tokenize(p[0])
		if len(got) != 1 || got[0] != p[1] {
			t.Errorf("Tokenize(%q) = %v, want [%s]", p[0], got, p[1])
		}
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("the quick brown fox")
	for _, token := range tokens {
		if token == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", tokens)
		}
	}
}

func TestTokenizer_CJKSingleRuneTokens(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("你好world")
	want := []string{"你", "好", "world"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i, w := range want {
		if tokens[i] != w {
			t.Errorf("token %d: got %q, want %q", i, tokens[i], w)
		}
	}
}

func TestTokenizer_CJKNotStopworded(t *testing.T) {
	tok := NewTokenizer(true)

	// Single CJK runes must survive the short-word filter.
	tokens := tok.Tokenize("数据库连接")
	if len(tokens) != 5 {
		t.Errorf("expected 5 single-rune tokens, got %d: %v", len(tokens), tokens)
	}
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer(false)

	count := tok.CountTokens("hello world this is a test")
	if count < 6 {
		t.Errorf("expected count >= 6 words, got %d", count)
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer(true)

	if tokens := tok.Tokenize(""); len(tokens) != 0 {
		t.Errorf("expected no tokens for empty input, got %v", tokens)
	}
	if count := tok.CountTokens(""); count != 0 {
		t.Errorf("expected zero count for empty input, got %d", count)
	}
}
