package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragchat/config"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the hybrid index",
	Long: `Search for relevant passages using fused dense and sparse retrieval.

Examples:
  ragchat query -q "refund policy"
  ragchat query -q "onboarding checklist" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

type queryResult struct {
	ChunkID  string   `json:"chunk_id"`
	DocID    string   `json:"doc_id"`
	Score    float64  `json:"score"`
	Methods  []string `json:"methods"`
	Text     string   `json:"text"`
	Degraded bool     `json:"degraded,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(config.IndexDBPath(rootDir)); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'ragchat ingest' first")
	}

	svc, cleanup, err := buildService(rootDir, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	result, err := svc.Retrieve(cmd.Context(), queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]queryResult, len(result.Passages))
	for i, p := range result.Passages {
		methods := make([]string, len(p.Methods))
		for j, m := range p.Methods {
			methods[j] = string(m)
		}
		results[i] = queryResult{
			ChunkID:  p.Chunk.ID,
			DocID:    p.Chunk.DocID,
			Score:    p.Score,
			Methods:  methods,
			Text:     p.Chunk.Text,
			Degraded: result.Degraded,
		}
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if result.Degraded {
		fmt.Println("Warning: one retrieval method was unavailable, results are degraded")
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%s] score=%.4f methods=%v\n", i+1, r.ChunkID, r.Score, r.Methods)
		fmt.Printf("   %s\n\n", truncate(r.Text, 200))
	}

	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
