package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/vidhik-labs/vidhik-cli/internal/logger"
)

// watchSettle is how long a file must go without write events before it
// is considered fully copied and safe to ingest.
const watchSettle = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and ingest new PDFs",
	Long: `Watches a directory and ingests every PDF that appears in it.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// alreadyIngested reports whether a document with this filename exists.
// Re-ingesting a file always produces a new document, so watch mode skips
// filenames it has seen rather than duplicating them.
func alreadyIngested(ctx context.Context, filename string) (bool, error) {
	if documentStore == nil {
		return false, nil
	}
	docs, err := documentStore.ListDocuments(ctx)
	if err != nil {
		return false, err
	}
	for _, d := range docs {
		if d.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	dir := args[0]

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching %s for PDFs. Press Ctrl+C to stop.\n", dir)

	// A file being copied in emits a stream of write events; ingest only
	// once it has settled.
	pending := map[string]time.Time{}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-ticker.C:
			for path, last := range pending {
				if time.Since(last) < watchSettle {
					continue
				}
				delete(pending, path)

				seen, err := alreadyIngested(ctx, filepath.Base(path))
				if err != nil {
					cmd.PrintErrf("%s: %v\n", filepath.Base(path), err)
					continue
				}
				if seen {
					logger.Debug("Skipping %s, already ingested", filepath.Base(path))
					continue
				}

				if _, err := ingestFile(ctx, cmd, path); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					cmd.PrintErrf("%s: %v\n", filepath.Base(path), err)
				}
			}
		}
	}
}
