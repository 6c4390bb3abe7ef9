package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `List, view, or delete ingested documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	ctx := context.Background()
	docs, err := documentStore.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested yet.")
		return nil
	}

	for _, d := range docs {
		cmd.Printf("%s  %s  %d pages  %s\n",
			d.ID, d.Filename, d.PageCount, d.IngestedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	ctx := context.Background()
	doc, err := documentStore.GetDocument(ctx, args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document not found: %s", args[0])
		}
		return err
	}

	cmd.Printf("ID:       %s\n", doc.ID)
	cmd.Printf("Filename: %s\n", doc.Filename)
	cmd.Printf("Pages:    %d\n", doc.PageCount)
	cmd.Printf("Ingested: %s\n", doc.IngestedAt.Format("2006-01-02 15:04:05"))
	for i, conf := range doc.PageConfidences {
		cmd.Printf("  page %d: confidence %.2f\n", i+1, conf)
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	docID := args[0]
	ctx := context.Background()

	// Index entries go first so a stale hit never outlives its chunk.
	chunks, err := documentStore.ChunksByDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	for _, c := range chunks {
		if searchEngine != nil {
			if err := searchEngine.Delete(ctx, c.ID); err != nil {
				return fmt.Errorf("failed to remove chunk %s from sparse index: %w", c.ID, err)
			}
		}
		if vectorIndex != nil {
			if err := vectorIndex.Delete(ctx, c.ID); err != nil {
				return fmt.Errorf("failed to remove chunk %s from vector index: %w", c.ID, err)
			}
		}
	}

	if err := documentStore.DeleteDocument(ctx, docID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document not found: %s", docID)
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted %s (%d chunks)\n", docID, len(chunks))
	return nil
}
