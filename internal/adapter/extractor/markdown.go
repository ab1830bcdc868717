package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

var (
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdLink    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdImage   = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdEmph    = regexp.MustCompile(`(\*\*|__|\*|_|~~)`)
)

// Markdown strips markup so the index sees prose, not syntax. Code fence
// contents are kept verbatim; the fence markers themselves are dropped.
type Markdown struct{}

func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (e *Markdown) Format() domain.Format {
	return domain.FormatMarkdown
}

func (e *Markdown) Extract(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", domain.ErrUnsupportedFormat)
	}

	text := normalizeNewlines(string(data))

	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			continue
		}
		out = append(out, line)
	}
	text = strings.Join(out, "\n")

	text = mdImage.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdEmph.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "`", "")

	return text, nil
}
