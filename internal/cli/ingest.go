package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ragchat/internal/adapter/fs"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documents for retrieval",
	Long: `Ingest a file or a directory of documents into the hybrid index.
The indices are stored in .ragchat/ within the data directory.

Examples:
  ragchat ingest ./docs          # Ingest a directory
  ragchat ingest handbook.md     # Ingest a single file`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	svc, cleanup, err := buildService(rootDir, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()

	if !info.IsDir() {
		data, err := fs.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		result, err := svc.Ingest(ctx, filepath.Base(path), data)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		fmt.Printf("Ingested %s: %d chunks (doc %s)\n", filepath.Base(path), result.ChunksAdded, result.DocID)
		return nil
	}

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	fmt.Printf("Scanning %s...\n", path)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex

	progress := func(processed, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(processed)
	}

	result, err := svc.IngestDirectory(ctx, path, walker, progress)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Files ingested: %d\n", result.FilesIngested)
	fmt.Printf("  Files skipped:  %d (unsupported format)\n", result.FilesSkipped)
	fmt.Printf("  Chunks added:   %d\n", result.ChunksAdded)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}
