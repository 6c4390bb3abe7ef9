package driving

import (
	"context"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

// IngestService is the ingestion boundary consumed by the CLI and by any
// external API layer. Failures carry a domain.IngestError reason code.
type IngestService interface {
	// Ingest runs the full pipeline for one PDF: render, extract, chunk,
	// embed, index, persist. Cancellation via ctx is cooperative between
	// page tasks; chunks already indexed for completed work remain valid.
	Ingest(ctx context.Context, pdf []byte, filename string) (*domain.IngestReport, error)
}

// IndexAdmin exposes index maintenance operations.
type IndexAdmin interface {
	// Rebuild drops both indexes and reconstructs them from the chunk
	// store. Returns the number of chunks re-indexed. This is the
	// disaster-recovery path for a corrupt on-disk index.
	Rebuild(ctx context.Context) (int, error)
}
