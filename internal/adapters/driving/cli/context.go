package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

var contextLimit int

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Emit answer context as JSON",
	Long: `Retrieves the top chunks for a query and emits them as JSON shaped
for an external answer generator, with 1-based citation indexes.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().IntVarP(&contextLimit, "limit", "n", 0, "maximum number of chunks (0 uses the configured default)")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	chunks, err := searchService.AnswerContext(ctx, args[0], contextLimit)
	if err != nil {
		if errors.Is(err, domain.ErrNoSources) {
			cmd.Println("[]")
			return nil
		}
		return fmt.Errorf("context retrieval failed: %w", err)
	}

	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
