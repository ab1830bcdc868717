package port

import "ragchat/internal/domain"

// Extractor converts one document format to plain text.
type Extractor interface {
	// Extract returns the plain text content of the document bytes.
	Extract(data []byte) (string, error)

	// Format identifies the format this extractor handles.
	Format() domain.Format
}
