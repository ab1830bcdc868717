package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"ragchat/internal/adapter/fs"
	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// DirectoryResult summarizes a batch ingest.
type DirectoryResult struct {
	FilesIngested int
	FilesSkipped  int
	ChunksAdded   int
	Errors        []string
}

// ProgressFunc reports batch ingest progress to the caller.
type ProgressFunc func(processed, total int, currentFile string)

// IngestDirectory walks root and ingests every matching file. Files in
// unsupported formats are skipped, not fatal; other per-file errors are
// collected and reported.
func (s *Service) IngestDirectory(ctx context.Context, root string, walker port.FileWalker, progress ProgressFunc) (*DirectoryResult, error) {
	files, err := walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	result := &DirectoryResult{}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rel, err := filepath.Rel(root, file.Path)
		if err != nil {
			rel = file.Path
		}

		data, err := fs.ReadFile(file.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("read %s: %v", rel, err))
			continue
		}

		ingested, err := s.Ingest(ctx, rel, data)
		switch {
		case errors.Is(err, domain.ErrUnsupportedFormat):
			result.FilesSkipped++
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("ingest %s: %v", rel, err))
		default:
			result.FilesIngested++
			result.ChunksAdded += ingested.ChunksAdded
		}

		if progress != nil {
			progress(i+1, len(files), rel)
		}
	}

	return result, nil
}
