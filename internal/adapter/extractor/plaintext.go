package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

// PlainText passes UTF-8 text through unchanged.
type PlainText struct{}

func NewPlainText() *PlainText {
	return &PlainText{}
}

func (e *PlainText) Format() domain.Format {
	return domain.FormatText
}

func (e *PlainText) Extract(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", domain.ErrUnsupportedFormat)
	}
	return normalizeNewlines(string(data)), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
