package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Performs hybrid search across all ingested documents.
Combines keyword (BM25) and semantic (vector) search. If the embedding
service is unavailable the query degrades to keyword search alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 uses the configured default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ranked, err := searchService.Search(ctx, query, domain.SearchOptions{Limit: searchLimit})
	if err != nil {
		if errors.Is(err, domain.ErrNoSources) {
			cmd.Println("No documents ingested yet. Run 'vidhik ingest' first.")
			return nil
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, ranked)
	}
	return outputSearchTable(cmd, ranked)
}

func outputSearchJSON(cmd *cobra.Command, ranked *domain.RankedChunks) error {
	data, err := json.MarshalIndent(ranked, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, ranked *domain.RankedChunks) error {
	if ranked.Mode.Degraded() {
		cmd.Printf("Note: degraded retrieval (%s)\n\n", ranked.Mode)
	}

	if len(ranked.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range ranked.Results {
		pages := fmt.Sprintf("p.%d", r.Chunk.PageStart+1)
		if r.Chunk.PageEnd > r.Chunk.PageStart {
			pages = fmt.Sprintf("p.%d-%d", r.Chunk.PageStart+1, r.Chunk.PageEnd+1)
		}

		cmd.Printf("  [%d] %s %s (%.3f)\n", i+1, r.Document.Filename, pages, r.Score)
		cmd.Printf("      %s\n", snippet(r.Chunk.Content, 160))
		cmd.Println()
	}

	return nil
}

// snippet truncates on a rune boundary so multibyte Devanagari text is
// never cut mid-character.
func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
