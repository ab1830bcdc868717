package extractor

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

var (
	htmlScript = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTag    = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlSpace  = regexp.MustCompile(`[ \t]+`)
	htmlBlank  = regexp.MustCompile(`\n{3,}`)
)

// HTML strips tags, decodes entities, and collapses whitespace.
type HTML struct{}

func NewHTML() *HTML {
	return &HTML{}
}

func (e *HTML) Format() domain.Format {
	return domain.FormatHTML
}

func (e *HTML) Extract(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", domain.ErrUnsupportedFormat)
	}

	text := normalizeNewlines(string(data))
	text = htmlScript.ReplaceAllString(text, " ")
	text = htmlTag.ReplaceAllString(text, " ")

	text = html.UnescapeString(text)
	// Non-breaking spaces confuse the tokenizer; index them as plain spaces.
	text = strings.ReplaceAll(text, " ", " ")

	text = htmlSpace.ReplaceAllString(text, " ")
	text = htmlBlank.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}
