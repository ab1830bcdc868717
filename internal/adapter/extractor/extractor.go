// Package extractor converts supported document formats to plain text
// before chunking. Each extractor handles one format; unsupported formats
// are rejected before any indexing happens.
package extractor

import (
	"fmt"
	"path/filepath"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// Registry resolves an extractor from a filename extension.
type Registry struct {
	byFormat map[domain.Format]port.Extractor
}

func NewRegistry(extractors ...port.Extractor) *Registry {
	r := &Registry{byFormat: make(map[domain.Format]port.Extractor, len(extractors))}
	for _, e := range extractors {
		r.byFormat[e.Format()] = e
	}
	return r
}

// DefaultRegistry registers every built-in extractor.
func DefaultRegistry() *Registry {
	return NewRegistry(NewPlainText(), NewMarkdown(), NewHTML(), NewDOCX())
}

// FormatFor maps a filename to its document format.
func FormatFor(name string) (domain.Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", "":
		return domain.FormatText, nil
	case ".md", ".markdown":
		return domain.FormatMarkdown, nil
	case ".html", ".htm":
		return domain.FormatHTML, nil
	case ".docx":
		return domain.FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Extract resolves the format from the filename and runs its extractor.
func (r *Registry) Extract(name string, data []byte) (string, domain.Format, error) {
	format, err := FormatFor(name)
	if err != nil {
		return "", "", err
	}
	e, ok := r.byFormat[format]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
	text, err := e.Extract(data)
	if err != nil {
		return "", "", err
	}
	return text, format, nil
}
