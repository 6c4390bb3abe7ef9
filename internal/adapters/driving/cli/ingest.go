package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest PDF documents",
	Long: `Runs each PDF through the extraction pipeline: pages are rasterised,
extracted by the configured backend chain, chunked, embedded and indexed.
A file that fails leaves the others unaffected.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output reports as JSON")
	rootCmd.AddCommand(ingestCmd)
}

// pageProgressSetter is implemented by orchestrators that can report
// per-page completion.
type pageProgressSetter interface {
	SetProgress(fn func(pageIndex int))
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var reports []*domain.IngestReport
	failures := 0

	for _, path := range args {
		report, err := ingestFile(ctx, cmd, path)
		if err != nil {
			failures++
			var ingestErr *domain.IngestError
			if errors.As(err, &ingestErr) {
				cmd.PrintErrf("%s: %s\n", filepath.Base(path), ingestErr.Reason)
				if verbose {
					cmd.PrintErrf("  %v\n", ingestErr.Err)
				}
			} else {
				cmd.PrintErrf("%s: %v\n", filepath.Base(path), err)
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			continue
		}
		reports = append(reports, report)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(args))
	}
	return nil
}

func ingestFile(ctx context.Context, cmd *cobra.Command, path string) (*domain.IngestReport, error) {
	pdf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if !ingestJSON {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(filepath.Base(path)),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		if setter, ok := ingestService.(pageProgressSetter); ok {
			setter.SetProgress(func(int) { _ = bar.Add(1) })
			defer setter.SetProgress(nil)
		}
	}

	report, err := ingestService.Ingest(ctx, pdf, filepath.Base(path))
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	if !ingestJSON {
		printReport(cmd, report)
	}
	return report, nil
}

func printReport(cmd *cobra.Command, report *domain.IngestReport) {
	cmd.Printf("%s: %d pages, %d chunks indexed in %s\n",
		report.Document.Filename, report.Document.PageCount,
		report.ChunksIndexed, report.Duration.Round(10*time.Millisecond))

	if report.ChunksSkippedDense > 0 {
		cmd.Printf("  warning: %d chunks indexed without dense vectors\n", report.ChunksSkippedDense)
	}

	empty := 0
	for _, p := range report.Pages {
		if p.Status != domain.PageExtracted {
			empty++
		}
	}
	if empty > 0 {
		cmd.Printf("  warning: %d of %d pages yielded no text\n", empty, len(report.Pages))
	}
}
